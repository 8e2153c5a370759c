// Package middleware holds the HTTP middleware shared by every route group.
package middleware

import (
	"encoding/json"
	"net/http"

	"naskah/internal/auth"
)

// RequireSession rejects requests without a valid session and stores the
// verified session in the request context for downstream handlers.
//
// Websocket clients cannot set headers, so the token may also arrive in the
// "token" query parameter.
func RequireSession(a *auth.Authority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.TokenFromRequest(r) == "" {
				unauthorized(w, "Unauthorized: No token provided")
				return
			}
			s := a.FromRequest(r)
			if s == nil {
				unauthorized(w, "Unauthorized: Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), s)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
