// Package auth implements the Session Authority: credential strategies,
// signed session tokens, refresh, revocation and the /api/auth endpoints.
package auth

import (
	"context"
	"time"
)

type contextKey string

const sessionKey contextKey = "session"

// Identity is the verified user behind a session.
type Identity struct {
	UserID string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Session is the decoded state of a valid session token.
type Session struct {
	User     Identity  `json:"user"`
	Provider string    `json:"provider,omitempty"`
	Expires  time.Time `json:"expires"`
	IssuedAt time.Time `json:"-"`
	TokenID  string    `json:"-"`
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by the auth middleware, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// UserIDFromContext returns the authenticated user id, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.User.UserID
	}
	return ""
}
