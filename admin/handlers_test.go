package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ncmproj/ncm/mode"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/ncm"
	"github.com/ncmproj/ncm/ncm/deps"
	"github.com/ncmproj/ncm/store/memstore"
	"github.com/ncmproj/ncm/worker"
	"github.com/stretchr/testify/require"
)

const (
	eventuallyTimeout = time.Second
	eventuallyTick    = 10 * time.Millisecond
)

func newTestHandlers(t *testing.T) (*Handlers, *ncm.Core, *worker.Pool) {
	t.Helper()
	st := memstore.New()
	pool := worker.New()
	fake := deps.NewFake(st, pool)
	core := ncm.New(mode.ForTooling(), fake, ncconfig.JSONCodec{}, ncm.Options{})
	t.Cleanup(core.Shutdown)

	require.True(t, core.Init(context.Background(), ncconfig.NC{Version: 1, Payload: []byte("seed")}, true))
	return NewHandlers(7, core, ncconfig.JSONCodec{}, pool), core, pool
}

func TestHandleStatusReportsPublishedVersion(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	rec := httptest.NewRecorder()
	h.handleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["published"])
	require.Equal(t, float64(7), body["node_id"])
}

func TestHandleConfigReturnsPublishedPayload(t *testing.T) {
	h, _, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	rec := httptest.NewRecorder()
	h.handleConfig(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"version":1`)
}

func TestHandleConfigBeforePublishReturnsServiceUnavailable(t *testing.T) {
	st := memstore.New()
	pool := worker.New()
	fake := deps.NewFake(st, pool)
	core := ncm.New(mode.ForClient(), fake, ncconfig.JSONCodec{}, ncm.Options{})
	t.Cleanup(core.Shutdown)

	h := NewHandlers(1, core, ncconfig.JSONCodec{}, pool)

	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	rec := httptest.NewRecorder()
	h.handleConfig(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleWorkersFiltersByGlobPattern(t *testing.T) {
	h, _, pool := newTestHandlers(t)
	pool.RegisterWorker("storage-0", func(ncconfig.NC) {})
	pool.RegisterWorker("storage-1", func(ncconfig.NC) {})
	pool.RegisterWorker("sequencer-0", func(ncconfig.NC) {})

	req := httptest.NewRequest(http.MethodGet, "/admin/workers?match=storage-*", nil)
	rec := httptest.NewRecorder()
	h.handleWorkers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, float64(2), resp["count"])
}

func TestHandleOverwritePublishesRequestedVersion(t *testing.T) {
	h, core, _ := newTestHandlers(t)

	body := `{"version": 42, "payload": "Zm9yY2Vk"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/overwrite", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleOverwrite(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "OK", resp["status"])

	require.Eventually(t, func() bool {
		nc, found := core.GetConfig()
		return found && nc.Version == 42
	}, eventuallyTimeout, eventuallyTick)
}
