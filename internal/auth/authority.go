package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"naskah/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrNotConfigured      = errors.New("authentication is not configured")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownProvider    = errors.New("unknown provider")
)

type claims struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Authority verifies and issues session tokens. It is built once per process
// and shared by the auth endpoints and the RequireSession middleware.
type Authority struct {
	secret     []byte
	maxAge     time.Duration
	updateAge  time.Duration
	cookieName string
	secure     bool

	providers map[string]Provider
	order     []string
	revoker   Revoker

	log *zap.Logger
	now func() time.Time
}

type Option func(*Authority)

// WithProviders registers credential strategies, keyed by their ID.
func WithProviders(providers ...Provider) Option {
	return func(a *Authority) {
		for _, p := range providers {
			if _, dup := a.providers[p.ID()]; !dup {
				a.order = append(a.order, p.ID())
			}
			a.providers[p.ID()] = p
		}
	}
}

// WithRevoker replaces the default in-memory revocation list.
func WithRevoker(r Revoker) Option {
	return func(a *Authority) { a.revoker = r }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// New builds the authority. An empty AUTH_SECRET does not stop the process:
// one warning is logged and the authority runs degraded, treating every
// request as unauthenticated and refusing to issue tokens.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) *Authority {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Authority{
		secret:     []byte(cfg.AuthSecret),
		maxAge:     cfg.SessionMaxAge,
		updateAge:  cfg.SessionUpdateAge,
		cookieName: cfg.SessionCookie,
		secure:     cfg.IsProduction(),
		providers:  make(map[string]Provider),
		log:        log,
		now:        time.Now,
	}
	if a.maxAge <= 0 {
		a.maxAge = 30 * 24 * time.Hour
	}
	if a.cookieName == "" {
		a.cookieName = "naskah.session-token"
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.revoker == nil {
		a.revoker = NewMemoryRevoker()
	}

	if a.Degraded() {
		log.Warn("AUTH_SECRET is not set: sessions cannot be issued or verified and every request will be treated as unauthenticated")
	}
	return a
}

// Degraded reports whether the authority is running without a secret.
func (a *Authority) Degraded() bool { return len(a.secret) == 0 }

// Providers returns the registered strategies in registration order.
func (a *Authority) Providers() []Provider {
	out := make([]Provider, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.providers[id])
	}
	return out
}

// Provider looks up a strategy by ID.
func (a *Authority) Provider(id string) (Provider, error) {
	p, ok := a.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return p, nil
}

// Issue signs a new session token for id.
func (a *Authority) Issue(_ context.Context, id Identity, provider string) (*Session, string, error) {
	if a.Degraded() {
		return nil, "", ErrNotConfigured
	}
	if id.UserID == "" {
		return nil, "", fmt.Errorf("issue session: empty user id")
	}

	now := a.now().UTC().Truncate(time.Second)
	s := &Session{
		User:     id,
		Provider: provider,
		IssuedAt: now,
		Expires:  now.Add(a.maxAge),
		TokenID:  ulid.Make().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name:     id.Name,
		Email:    id.Email,
		Provider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ID:        s.TokenID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.Expires),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session: %w", err)
	}
	return s, signed, nil
}

// Verify decodes a session token. Every failure wraps ErrUnauthenticated.
func (a *Authority) Verify(ctx context.Context, tokenString string) (*Session, error) {
	if a.Degraded() {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrNotConfigured)
	}
	if tokenString == "" {
		return nil, fmt.Errorf("%w: no token provided", ErrUnauthenticated)
	}

	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: sub claim is missing", ErrUnauthenticated)
	}

	revoked, err := a.revoker.IsRevoked(ctx, c.ID)
	if err != nil {
		a.log.Error("revocation lookup failed", zap.String("jti", c.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: session revoked", ErrUnauthenticated)
	}

	s := &Session{
		User:     Identity{UserID: c.Subject, Name: c.Name, Email: c.Email},
		Provider: c.Provider,
		TokenID:  c.ID,
	}
	if c.ExpiresAt != nil {
		s.Expires = c.ExpiresAt.Time.UTC()
	}
	if c.IssuedAt != nil {
		s.IssuedAt = c.IssuedAt.Time.UTC()
	}
	return s, nil
}

// Refresh re-issues s when it is older than the update age. The bool result
// reports whether a new token was signed.
func (a *Authority) Refresh(ctx context.Context, s *Session) (*Session, string, bool, error) {
	if a.now().Sub(s.IssuedAt) < a.updateAge {
		return s, "", false, nil
	}
	fresh, token, err := a.Issue(ctx, s.User, s.Provider)
	if err != nil {
		return nil, "", false, err
	}
	return fresh, token, true, nil
}

// Revoke invalidates s until its natural expiry.
func (a *Authority) Revoke(ctx context.Context, s *Session) error {
	if s == nil || s.TokenID == "" {
		return nil
	}
	return a.revoker.Revoke(ctx, s.TokenID, s.Expires)
}

// TokenFromRequest returns the raw token from the session cookie, the
// Authorization header or the "token" query parameter, in that order. The
// query fallback exists for websocket clients, which cannot set headers.
func (a *Authority) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(a.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// FromRequest returns the verified session carried by r, or nil.
func (a *Authority) FromRequest(r *http.Request) *Session {
	token := a.TokenFromRequest(r)
	if token == "" {
		return nil
	}
	s, err := a.Verify(r.Context(), token)
	if err != nil {
		a.log.Debug("request is unauthenticated", zap.Error(err))
		return nil
	}
	return s
}

// SetSessionCookie writes the session token cookie.
func (a *Authority) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session token cookie.
func (a *Authority) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
