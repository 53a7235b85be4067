package admin

import (
	"net/http"
	"strings"
)

// adminSecretHeader is the PSK header admin clients present, mirroring
// the teacher's X-Marmot-Secret / Authorization: Bearer pattern
// (admin/middleware.go) but scoped to this process's admin surface only.
const adminSecretHeader = "X-Ncm-Admin-Secret"

// authMiddleware validates the configured admin secret, if any. An empty
// secret disables authentication entirely -- intended for local/dev use
// only, matching the teacher's IsClusterAuthEnabled() escape hatch.
func authMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(adminSecretHeader)
			if provided == "" {
				if authHeader := r.Header.Get("Authorization"); authHeader != "" {
					parts := strings.SplitN(authHeader, " ", 2)
					if len(parts) == 2 && parts[0] == "Bearer" {
						provided = parts[1]
					}
				}
			}
			if provided != secret {
				writeErrorResponse(w, http.StatusUnauthorized, "invalid or missing admin secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
