package security

import (
	"net/http"
	"slices"
	"strings"
)

// CORS answers preflight requests and tags responses for the allowed origins.
// An origin of "*" allows any origin without credentials.
type CORS struct {
	origins []string
	methods string
	headers string
}

// NewCORS builds a CORS middleware for the given origins.
func NewCORS(origins []string) *CORS {
	return &CORS{
		origins: origins,
		methods: strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ", "),
		headers: "Content-Type, X-Request-ID",
	}
}

func (c *CORS) allowed(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	if slices.Contains(c.origins, "*") {
		return "*", true
	}
	if slices.Contains(c.origins, origin) {
		return origin, true
	}
	return "", false
}

// Middleware returns the HTTP middleware function
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allow, ok := c.allowed(origin)
		if ok {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !ok {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", c.methods)
			h.Set("Access-Control-Allow-Headers", c.headers)
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
