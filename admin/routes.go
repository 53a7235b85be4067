package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes mounts the NCM admin surface under /admin, in the same
// chi-under-http.ServeMux shape as the teacher's admin.RegisterRoutes.
func RegisterRoutes(mux *http.ServeMux, h *Handlers, secret string) {
	r := chi.NewRouter()
	r.Use(authMiddleware(secret))

	r.Get("/status", h.handleStatus)
	r.Get("/config", h.handleConfig)
	r.Get("/workers", h.handleWorkers)
	r.Post("/overwrite", h.handleOverwrite)

	mux.Handle("/admin", http.RedirectHandler("/admin/", http.StatusMovedPermanently))
	mux.Handle("/admin/", http.StripPrefix("/admin", r))

	log.Info().Msg("ncm: admin endpoints enabled at /admin/*")
}
