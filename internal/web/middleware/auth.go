// Package middleware provides HTTP middleware for the API surface.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/voxsheet/voxsheet/internal/config"
)

// APIKeyAuth enforces API key authentication when enabled in config.
// Keys are accepted from the X-API-Key header or a Bearer token.
// Comparison is constant time to avoid leaking key contents.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if key == "" || !keyMatches(key, cfg.APIKeys) {
				slog.Warn("rejected unauthenticated api request",
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid or missing API key"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func keyMatches(candidate string, keys []string) bool {
	matched := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(k)) == 1 {
			matched = true
		}
	}
	return matched
}
