package ncconfig

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedUpdate struct {
	result NC
	err    error
}

func (u fixedUpdate) Apply(base NC) (NC, error) {
	return u.result, u.err
}

func TestApplyUpdateAdvancesVersionWhenUpdateDoesNot(t *testing.T) {
	base := NC{Version: 3, Payload: []byte("old")}
	u := fixedUpdate{result: NC{Payload: []byte("new")}}

	got, err := base.ApplyUpdate(u)
	require.NoError(t, err)
	assert.Equal(t, Version(4), got.Version)
	assert.Equal(t, []byte("new"), got.Payload)
}

func TestApplyUpdateKeepsExplicitHigherVersion(t *testing.T) {
	base := NC{Version: 3}
	u := fixedUpdate{result: NC{Version: 10, Payload: []byte("skip-ahead")}}

	got, err := base.ApplyUpdate(u)
	require.NoError(t, err)
	assert.Equal(t, Version(10), got.Version)
}

func TestApplyUpdateRejection(t *testing.T) {
	base := NC{Version: 3, Payload: []byte("old")}
	cause := errors.New("boom")
	u := fixedUpdate{err: cause}

	_, err := base.ApplyUpdate(u)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}

func TestUpdateRejectedErrorUnwraps(t *testing.T) {
	cause := errors.New("cause")
	err := &UpdateRejectedError{Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cause")
}

func TestWithVersion(t *testing.T) {
	nc := NC{Version: 1, Payload: []byte("p")}
	got := nc.WithVersion(9)
	assert.Equal(t, Version(9), got.Version)
	assert.Equal(t, nc.Payload, got.Payload)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, Empty.IsEmpty())
	assert.False(t, NC{Version: 1}.IsEmpty())
}
