// Package admin exposes an HTTP status/members surface over a running
// ncm.Core, using go-chi/chi/v5 the way the teacher's admin package
// mounts its own metadata routes (admin/routes.go, admin/handlers.go).
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/gobwas/glob"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/ncm"
	"github.com/ncmproj/ncm/store"
	"github.com/ncmproj/ncm/worker"
	"github.com/rs/zerolog/log"
)

// Handlers serves NCM status/members endpoints for a single Core.
type Handlers struct {
	nodeID uint64
	core   *ncm.Core
	codec  ncconfig.Codec
	pool   *worker.Pool
}

// NewHandlers builds a Handlers bound to core. codec is used only to
// render debug-readable JSON of the published configuration's payload.
// pool is used to list and filter registered worker names.
func NewHandlers(nodeID uint64, core *ncm.Core, codec ncconfig.Codec, pool *worker.Pool) *Handlers {
	return &Handlers{nodeID: nodeID, core: core, codec: codec, pool: pool}
}

// handleWorkers handles GET /admin/workers: the names of currently
// registered fan-out workers, optionally narrowed with a glob pattern in
// the "match" query parameter (e.g. ?match=storage-*), the same
// pattern-matching idiom the teacher uses to filter CDC events by table
// name (publisher/filter.go's GlobFilter).
func (h *Handlers) handleWorkers(w http.ResponseWriter, r *http.Request) {
	names := h.pool.Names()

	if pattern := r.URL.Query().Get("match"); pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "invalid match pattern: "+err.Error())
			return
		}
		filtered := names[:0]
		for _, name := range names {
			if g.Match(name) {
				filtered = append(filtered, name)
			}
		}
		names = filtered
	}

	writeJSONResponse(w, map[string]any{"workers": names, "count": len(names)})
}

// handleStatus handles GET /admin/status: mode, published/pending
// version, and tracker backlog, mirroring the teacher's
// handleStats/handleClusterHealth shape.
func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	published, found := h.core.GetConfig()
	latest := h.core.GetLatestKnownConfig()

	resp := map[string]any{
		"node_id":              h.nodeID,
		"mode":                 h.core.Mode().String(),
		"published":            found,
		"tracked_shards":       h.core.TrackedShards(),
		"latest_known_version": latest.Version,
	}
	if found {
		resp["published_version"] = published.Version
	}

	writeJSONResponse(w, resp)
}

// handleConfig handles GET /admin/config: the currently published
// configuration, rendered via the codec's debug JSON form so the payload
// doesn't need its own admin-facing schema.
func (h *Handlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	nc, found := h.core.GetConfig()
	if !found {
		writeErrorResponse(w, http.StatusServiceUnavailable, (&ncm.NotInitializedError{NodeID: h.nodeID}).Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(h.codec.DebugJSONString(nc))); err != nil {
		log.Error().Err(err).Msg("ncm/admin: failed to write config response")
	}
}

// handleOverwrite handles POST /admin/overwrite: an emergency escape
// hatch for a Tooling-mode instance, forcing the store straight to the
// posted version regardless of CAS base (spec.md §4.4 overwrite path).
func (h *Handlers) handleOverwrite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Version uint64 `json:"version"`
		Payload []byte `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	type outcome struct {
		status store.Status
		nc     ncconfig.NC
	}
	result := make(chan outcome, 1)
	h.core.Overwrite(ncconfig.NC{Version: ncconfig.Version(body.Version), Payload: body.Payload}, func(status store.Status, nc ncconfig.NC) {
		result <- outcome{status, nc}
	})

	got := <-result
	writeJSONResponse(w, map[string]any{
		"status":  got.status.String(),
		"version": got.nc.Version,
	})
}

func writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("ncm/admin: failed to encode JSON response")
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Error().Err(err).Msg("ncm/admin: failed to encode error response")
	}
}
