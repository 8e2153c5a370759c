package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"naskah/internal/auth"
	"naskah/internal/document/model"
	"naskah/internal/document/service"
	"naskah/pkg/logger"

	"github.com/go-chi/chi/v5"
)

const maxDocumentBody = 4 << 20

type DocumentHandler struct {
	Service *service.DocumentService
}

func NewDocumentHandler(service *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{Service: service}
}

// Routes mounts the document endpoints on r. r must already require a session.
func (h *DocumentHandler) Routes(r chi.Router) {
	r.Get("/", h.ListDocuments)
	r.Post("/", h.CreateDocument)
	r.Get("/{id}", h.GetDocument)
	r.Patch("/{id}", h.UpdateDocument)
	r.Delete("/{id}", h.DeleteDocument)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	previews, err := h.Service.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to list documents: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, previews)
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.CreateDocRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	doc, err := h.Service.Create(r.Context(), auth.UserIDFromContext(r.Context()), req)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create document")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Service.Get(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateDocRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	doc, err := h.Service.Update(r.Context(), auth.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Service.Delete(r.Context(), auth.UserIDFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Sugar.Errorf("Handler: Failed to %s document: %v", op, err)
		writeError(w, http.StatusInternalServerError, "Failed to "+op+" document")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
