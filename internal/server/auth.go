package server

import (
	"crypto/subtle"
	"net/http"
)

// exemptPaths bypass authentication.
var exemptPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// BasicAuthMiddleware validates HTTP basic auth against the configured
// users. With no users configured, authentication is disabled.
func BasicAuthMiddleware(users map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(users) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			user, pass, ok := r.BasicAuth()
			if ok {
				want, known := users[user]
				if known && subtle.ConstantTimeCompare([]byte(pass), []byte(want)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="colorsweep"`)
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"status":  http.StatusUnauthorized,
				"message": "authentication required",
			})
		})
	}
}
