package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"naskah/config"
	"naskah/internal/app"
	"naskah/internal/auth"
	"naskah/socket"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, secret string) (*app.App, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{
		Env:                config.EnvTest,
		DBDriver:           "sqlite",
		DatabaseURL:        filepath.Join(t.TempDir(), "router.db"),
		DBMaxOpenConns:     1,
		DBMaxIdleConns:     1,
		Migrate:            true,
		AuthSecret:         secret,
		SessionMaxAge:      time.Hour,
		SessionUpdateAge:   time.Hour,
		CORSAllowedOrigins: "https://app.example.com",
	}
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(Setup(a))
	t.Cleanup(func() {
		srv.Close()
		a.Close(context.Background())
	})
	return a, srv
}

func TestRouter_HealthAndRequestID(t *testing.T) {
	_, srv := newServer(t, "router-secret")

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	}
}

func TestRouter_AuthRouteAcceptsGetAndPost(t *testing.T) {
	_, srv := newServer(t, "")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req, err := http.NewRequest(method, srv.URL+"/api/auth/session", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, method)
	}
}

func TestRouter_DocumentsRequireSession(t *testing.T) {
	_, srv := newServer(t, "router-secret")

	resp, err := http.Get(srv.URL + "/api/documents")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	_, srv := newServer(t, "router-secret")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/documents", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_CreateIsPushedToOwnerFeed(t *testing.T) {
	a, srv := newServer(t, "router-secret")

	_, token, err := a.Auth.Issue(context.Background(), auth.Identity{UserID: "owner"}, "credentials")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/documents/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.Hub.Connections("owner") == 1 }, time.Second, 10*time.Millisecond)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/documents", strings.NewReader(`{"title":"Live","markdown":"# Live"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg socket.WSMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, socket.CreatedType, msg.Type)
	assert.Equal(t, "owner", msg.UserID)
	assert.Contains(t, string(msg.Payload), `"markdown":"# Live"`)
}

func TestRouter_FeedRejectsForeignOrigin(t *testing.T) {
	a, srv := newServer(t, "router-secret")

	_, token, err := a.Auth.Issue(context.Background(), auth.Identity{UserID: "owner"}, "credentials")
	require.NoError(t, err)

	header := http.Header{"Origin": {"https://evil.example.net"}}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/documents/events?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
