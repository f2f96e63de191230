// Package cors answers preflight requests and sets CORS headers for the
// configured origins.
package cors

import (
	"net/http"
	"slices"
	"strings"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Accept, Origin, X-Requested-With, X-Request-ID"
)

type Middleware struct {
	origins  []string
	wildcard bool
}

// New builds the middleware. An origin of "*" allows every origin.
func New(origins []string) *Middleware {
	m := &Middleware{}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			m.wildcard = true
		}
		m.origins = append(m.origins, o)
	}
	return m
}

// IsAllowedOrigin reports whether origin may read responses.
func (m *Middleware) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	return m.wildcard || slices.Contains(m.origins, origin)
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		h := w.Header()
		h.Add("Vary", "Origin")

		allowed := m.IsAllowedOrigin(origin)
		if allowed {
			if m.wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			h.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID, Retry-After")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
