package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hdfs-drive/internal/model"
	"hdfs-drive/internal/service"
	"hdfs-drive/pkg/apierror"
)

type ShareHandler struct {
	service *service.ShareService
}

func NewShareHandler(service *service.ShareService) *ShareHandler {
	return &ShareHandler{service: service}
}

func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.CreateShareRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(payload.Path) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "path is required", "path", http.StatusBadRequest))
		return
	}

	record, err := h.service.Create(r.Context(), p, payload.Path, payload.ExpiresIn)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, record)
}

func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	records, err := h.service.List(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, records)
}

func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	if err := h.service.Revoke(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"revoked": true})
}

// PublicDownload serves a shared file by its token without authentication.
func (h *ShareHandler) PublicDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	record, entry, body, err := h.service.OpenByToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	serveStream(w, record.Name, entry.Size, body, r.URL.Query().Get("inline") == "true")
}
