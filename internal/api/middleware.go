// Package api implements the cvdesk REST API using chi.
package api

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/starford/cvdesk/internal/session"
)

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// SessionMiddleware binds each request to a client session. The id comes
// from the X-Session-ID header or the session cookie; clients without one
// get a fresh id in a cookie that lives as long as session values do.
func SessionMiddleware(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(session.HeaderName)
			if !sessionIDRe.MatchString(id) {
				id = ""
				if c, err := r.Cookie(session.CookieName); err == nil && sessionIDRe.MatchString(c.Value) {
					id = c.Value
				}
			}
			if id == "" {
				id = session.NewID()
			}
			http.SetCookie(w, &http.Cookie{
				Name:     session.CookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			w.Header().Set(session.HeaderName, id)
			next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
		})
	}
}
