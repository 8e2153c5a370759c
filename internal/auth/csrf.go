package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	CSRFCookieName = "naskah.csrf-token"
	CSRFHeader     = "X-CSRF-Token"
)

// NewCSRF returns a double-submit token and the signed value to store in the
// CSRF cookie.
func (a *Authority) NewCSRF() (token, cookieValue string, err error) {
	if a.Degraded() {
		return "", "", ErrNotConfigured
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, token + "|" + a.csrfMAC(token), nil
}

// CheckCSRF reports whether submitted matches the signed token in r's CSRF
// cookie. The X-CSRF-Token header is used when submitted is empty.
func (a *Authority) CheckCSRF(r *http.Request, submitted string) bool {
	if a.Degraded() {
		return false
	}
	if submitted == "" {
		submitted = r.Header.Get(CSRFHeader)
	}
	c, err := r.Cookie(CSRFCookieName)
	if err != nil || submitted == "" {
		return false
	}
	token, mac, ok := strings.Cut(c.Value, "|")
	if !ok || !hmac.Equal([]byte(mac), []byte(a.csrfMAC(token))) {
		return false
	}
	return hmac.Equal([]byte(token), []byte(submitted))
}

// SetCSRFCookie writes the signed CSRF cookie.
func (a *Authority) SetCSRFCookie(w http.ResponseWriter, cookieValue string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    cookieValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Authority) csrfMAC(token string) string {
	m := hmac.New(sha256.New, a.secret)
	m.Write([]byte("csrf:" + token))
	return hex.EncodeToString(m.Sum(nil))
}
