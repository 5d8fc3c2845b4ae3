package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// OriginAllowed returns a check that accepts origins starting with any of
// prefixes, e.g. "http://localhost:" for every local dev port.
func OriginAllowed(prefixes []string) func(origin string) bool {
	clean := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	return func(origin string) bool {
		for _, p := range clean {
			if strings.HasPrefix(origin, p) {
				return true
			}
		}
		return false
	}
}

// CORS allows credentialed browser requests from origins matching prefixes.
// Requests without an Origin header are not CORS requests and pass through.
func CORS(prefixes []string) func(http.Handler) http.Handler {
	allowed := OriginAllowed(prefixes)
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return allowed(origin)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}

// WebSocketOrigin adapts OriginAllowed for a WebSocket upgrader: a missing
// Origin header (non-browser client) is accepted.
func WebSocketOrigin(prefixes []string) func(r *http.Request) bool {
	allowed := OriginAllowed(prefixes)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed(origin)
	}
}
