package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxCredentialsBody = 64 << 10

type providerInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SigninURL string `json:"signinUrl"`
}

// sessionResponse carries the raw token alongside the session whenever one is
// issued, for clients that send it as a bearer token instead of a cookie.
type sessionResponse struct {
	*Session
	Token string `json:"token,omitempty"`
}

// Handler serves the catch-all /api/auth/* route. GET and POST go through
// the same dispatcher; the first path segment selects the action.
type Handler struct {
	auth *Authority
	log  *zap.Logger
}

func NewHandler(a *Authority, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: a, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	action, rest, _ := strings.Cut(strings.Trim(chi.URLParam(r, "*"), "/"), "/")
	switch action {
	case "session":
		h.session(w, r)
	case "providers":
		h.providers(w)
	case "csrf":
		h.csrf(w)
	case "signin":
		h.signin(w, r, rest)
	case "signout":
		h.signout(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown auth action")
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	s := h.auth.FromRequest(r)
	if s == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s)
		return
	}

	fresh, token, refreshed, err := h.auth.Refresh(r.Context(), s)
	if err != nil {
		h.log.Error("session refresh failed", zap.String("user_id", s.User.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}
	if refreshed {
		h.auth.SetSessionCookie(w, token, fresh.Expires)
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: fresh, Token: token})
}

func (h *Handler) providers(w http.ResponseWriter) {
	out := make(map[string]providerInfo)
	for _, p := range h.auth.Providers() {
		out[p.ID()] = describe(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) csrf(w http.ResponseWriter) {
	token, cookie, err := h.auth.NewCSRF()
	if errors.Is(err, ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.log.Error("csrf token generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to generate csrf token")
		return
	}
	h.auth.SetCSRFCookie(w, cookie)
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (h *Handler) signin(w http.ResponseWriter, r *http.Request, providerID string) {
	if providerID == "" {
		h.providers(w)
		return
	}
	p, err := h.auth.Provider(providerID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, describe(p))
		return
	}
	if h.auth.Degraded() {
		writeError(w, http.StatusServiceUnavailable, ErrNotConfigured.Error())
		return
	}

	creds, err := readCredentials(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.auth.CheckCSRF(r, creds["csrfToken"]) {
		writeError(w, http.StatusForbidden, "invalid csrf token")
		return
	}

	id, err := p.Authorize(r.Context(), creds)
	if errors.Is(err, ErrInvalidCredentials) {
		h.log.Info("sign-in rejected", zap.String("provider", p.ID()), zap.Error(err))
		writeError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		h.log.Error("sign-in failed", zap.String("provider", p.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}

	s, token, err := h.auth.Issue(r.Context(), *id, p.ID())
	if err != nil {
		h.log.Error("session issue failed", zap.String("user_id", id.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sign-in failed")
		return
	}
	h.auth.SetSessionCookie(w, token, s.Expires)
	h.log.Info("signed in", zap.String("user_id", s.User.UserID), zap.String("provider", p.ID()))
	writeJSON(w, http.StatusOK, sessionResponse{Session: s, Token: token})
}

// signout revokes on POST only. GET reports who would be signed out.
func (h *Handler) signout(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if s := h.auth.FromRequest(r); s != nil {
			writeJSON(w, http.StatusOK, s)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	if h.auth.Degraded() {
		h.auth.ClearSessionCookie(w)
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	creds, err := readCredentials(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.auth.CheckCSRF(r, creds["csrfToken"]) {
		writeError(w, http.StatusForbidden, "invalid csrf token")
		return
	}

	if s := h.auth.FromRequest(r); s != nil {
		if err := h.auth.Revoke(r.Context(), s); err != nil {
			h.log.Error("session revoke failed", zap.String("user_id", s.User.UserID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to sign out")
			return
		}
		h.log.Info("signed out", zap.String("user_id", s.User.UserID))
	}
	h.auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, struct{}{})
}

func describe(p Provider) providerInfo {
	return providerInfo{
		ID:        p.ID(),
		Name:      p.Name(),
		Type:      p.Type(),
		SigninURL: "/api/auth/signin/" + p.ID(),
	}
}

// readCredentials accepts a JSON object of strings or a urlencoded form.
func readCredentials(w http.ResponseWriter, r *http.Request) (Credentials, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCredentialsBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		creds := Credentials{}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
		return creds, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	creds := Credentials{}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			creds[k] = v[0]
		}
	}
	return creds, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
