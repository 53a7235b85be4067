package memstore

import (
	"context"
	"testing"

	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateConfigSucceedsAtMatchingBaseVersion(t *testing.T) {
	s := New()
	var gotStatus store.Status
	var gotVersion ncconfig.Version
	s.UpdateConfig(context.Background(), []byte("v1"), ncconfig.EmptyVersion, func(st store.Status, v ncconfig.Version, b []byte) {
		gotStatus, gotVersion = st, v
	})
	assert.Equal(t, store.StatusOK, gotStatus)
	assert.Equal(t, ncconfig.Version(1), gotVersion)
}

func TestUpdateConfigConflictReturnsStoredState(t *testing.T) {
	s := New()
	s.UpdateConfig(context.Background(), []byte("v1"), ncconfig.EmptyVersion, func(store.Status, ncconfig.Version, []byte) {})

	var gotStatus store.Status
	var gotBytes []byte
	s.UpdateConfig(context.Background(), []byte("v2-stale-base"), ncconfig.EmptyVersion, func(st store.Status, v ncconfig.Version, b []byte) {
		gotStatus, gotBytes = st, b
	})
	assert.Equal(t, store.StatusVersionMismatch, gotStatus)
	assert.Equal(t, []byte("v1"), gotBytes)
}

func TestOverwriteRejectsEmptyPayload(t *testing.T) {
	s := New()
	var gotStatus store.Status
	s.Overwrite(context.Background(), ncconfig.NC{}, func(st store.Status, v ncconfig.Version, b []byte) {
		gotStatus = st
	})
	assert.Equal(t, store.StatusInvalidParam, gotStatus)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	s := New()
	received := make(chan []byte, 1)
	cancel, err := s.Subscribe(func(b []byte) { received <- b })
	require.NoError(t, err)
	defer cancel()

	s.UpdateConfig(context.Background(), []byte("hello"), ncconfig.EmptyVersion, func(store.Status, ncconfig.Version, []byte) {})

	select {
	case b := <-received:
		assert.Equal(t, []byte("hello"), b)
	default:
		t.Fatal("expected a notification")
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	s := New()
	calls := 0
	cancel, err := s.Subscribe(func([]byte) { calls++ })
	require.NoError(t, err)
	cancel()

	s.UpdateConfig(context.Background(), []byte("x"), ncconfig.EmptyVersion, func(store.Status, ncconfig.Version, []byte) {})
	assert.Equal(t, 0, calls)
}
