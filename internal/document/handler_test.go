package handler

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
	"naskah/config/database"
	"naskah/internal/auth"
	"naskah/internal/document/model"
	"naskah/internal/document/repository"
	"naskah/internal/document/service"
	"naskah/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router http.Handler
	auth   *auth.Authority
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := &config.Config{
		Env:              config.EnvTest,
		DBDriver:         "sqlite",
		DatabaseURL:      filepath.Join(t.TempDir(), "documents.db"),
		DBMaxOpenConns:   1,
		DBMaxIdleConns:   1,
		Migrate:          true,
		AuthSecret:       "handler-test-secret",
		SessionMaxAge:    time.Hour,
		SessionUpdateAge: time.Hour,
	}

	h, err := database.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	a := auth.New(cfg, nil)
	docs := NewDocumentHandler(service.NewDocumentService(repository.NewDocumentRepository(h), nil))

	r := chi.NewRouter()
	r.Route("/api/documents", func(r chi.Router) {
		r.Use(middleware.RequireSession(a))
		docs.Routes(r)
	})
	return &testAPI{router: r, auth: a}
}

func (api *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	_, token, err := api.auth.Issue(context.Background(), auth.Identity{UserID: userID}, "credentials")
	require.NoError(t, err)
	return token
}

func (api *testAPI) do(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	return rec
}

func TestDocumentsAPI_Lifecycle(t *testing.T) {
	api := newTestAPI(t)
	owner := api.token(t, "owner")

	rec := api.do(t, owner, http.MethodPost, "/api/documents", `{"title":"<i>Plan</i>","content":"body","markdown":"# Plan"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Plan", created.Title)
	assert.Equal(t, "owner", created.UserID)

	rec = api.do(t, owner, http.MethodGet, "/api/documents/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "body", fetched.Content)
	assert.Equal(t, "# Plan", fetched.Markdown)
	assert.True(t, created.CreatedAt.Equal(fetched.CreatedAt))

	rec = api.do(t, owner, http.MethodPatch, "/api/documents/"+created.ID, `{"markdown":"# Plan v2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "# Plan v2", updated.Markdown)
	assert.Equal(t, "body", updated.Content)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	rec = api.do(t, owner, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var previews []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &previews))
	require.Len(t, previews, 1)
	assert.Equal(t, "# Plan v2", previews[0]["markdown"])
	assert.NotContains(t, previews[0], "content")

	rec = api.do(t, owner, http.MethodDelete, "/api/documents/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, owner, http.MethodGet, "/api/documents/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDocumentsAPI_OwnershipAndErrors(t *testing.T) {
	api := newTestAPI(t)
	owner := api.token(t, "owner")
	intruder := api.token(t, "intruder")

	rec := api.do(t, owner, http.MethodPost, "/api/documents", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, service.DefaultTitle, created.Title)

	path := "/api/documents/" + created.ID
	assert.Equal(t, http.StatusForbidden, api.do(t, intruder, http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusForbidden, api.do(t, intruder, http.MethodPatch, path, `{"title":"mine now"}`).Code)
	assert.Equal(t, http.StatusForbidden, api.do(t, intruder, http.MethodDelete, path, "").Code)

	rec = api.do(t, intruder, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, api.do(t, owner, http.MethodPatch, path, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, owner, http.MethodPatch, path, `{"owner":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, owner, http.MethodPost, "/api/documents", `{"title":`).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, owner, http.MethodGet, "/api/documents/nope", "").Code)

	assert.Equal(t, http.StatusUnauthorized, api.do(t, "", http.MethodGet, "/api/documents", "").Code)
}
