package handler

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"hdfs-drive/internal/model"
	"hdfs-drive/internal/service"
	"hdfs-drive/internal/util"
	"hdfs-drive/pkg/apierror"
)

type DriveHandler struct {
	drive      *service.DriveService
	thumbnails *service.ThumbnailService
	maxUpload  int64
}

func NewDriveHandler(drive *service.DriveService, thumbnails *service.ThumbnailService, maxUpload int64) *DriveHandler {
	return &DriveHandler{drive: drive, thumbnails: thumbnails, maxUpload: maxUpload}
}

func (h *DriveHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	data, err := h.drive.List(r.Context(), p, r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, data)
}

func (h *DriveHandler) CreateDirectory(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.CreateDirectoryRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	data, err := h.drive.CreateDirectory(r.Context(), p, payload.Path, payload.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, data)
}

func (h *DriveHandler) Save(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.SaveFileRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(payload.Path) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "path is required", "path", http.StatusBadRequest))
		return
	}

	item, err := h.drive.Save(r.Context(), p, payload.Path, []byte(payload.Content))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, item)
}

// Upload accepts one or more multipart files. Each part is spooled to a
// local temp file first so a permission-escalated retry can replay the
// payload.
func (h *DriveHandler) Upload(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid multipart body", err.Error(), http.StatusBadRequest))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	dirPath := r.FormValue("path")
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, apierror.New("BAD_REQUEST", "no files in request", "files", http.StatusBadRequest))
		return
	}

	uploaded := make([]model.UploadItem, 0, len(files))
	for _, header := range files {
		item, err := h.uploadOne(r, p, dirPath, header)
		if err != nil {
			writeError(w, err)
			return
		}
		uploaded = append(uploaded, item)
	}

	writeSuccess(w, http.StatusCreated, uploaded)
}

func (h *DriveHandler) uploadOne(r *http.Request, p model.Principal, dirPath string, header *multipart.FileHeader) (model.UploadItem, error) {
	part, err := header.Open()
	if err != nil {
		return model.UploadItem{}, err
	}
	defer part.Close()

	tmp, err := os.CreateTemp("", "upload-*")
	if err != nil {
		return model.UploadItem{}, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, part); err != nil {
		tmp.Close()
		return model.UploadItem{}, err
	}
	if err := tmp.Close(); err != nil {
		return model.UploadItem{}, err
	}

	open := func() (io.ReadCloser, error) {
		return os.Open(tmpPath)
	}

	item, err := h.drive.Upload(r.Context(), p, dirPath, header.Filename, header.Size, open)
	if err != nil {
		return model.UploadItem{}, err
	}

	item.MimeType = header.Header.Get("Content-Type")
	if item.MimeType == "" {
		if spool, openErr := os.Open(tmpPath); openErr == nil {
			if sniffed, sniffErr := util.DetectMIMEFromFile(spool); sniffErr == nil {
				item.MimeType = sniffed
			}
			spool.Close()
		}
	}

	return item, nil
}

func (h *DriveHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	virtualPath := r.URL.Query().Get("path")
	entry, body, err := h.drive.Download(r.Context(), p, virtualPath)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	serveStream(w, entry.Name(), entry.Size, body, r.URL.Query().Get("inline") == "true")
}

func (h *DriveHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	f, err := h.thumbnails.Get(r.Context(), p, r.URL.Query().Get("path"), size)
	if err != nil {
		writeError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *DriveHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	q := r.URL.Query()
	permanent := q.Get("permanent") == "true"
	days := 0
	if raw := q.Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, apierror.New("BAD_REQUEST", "days must be a non-negative integer", raw, http.StatusBadRequest))
			return
		}
		days = parsed
	}

	resp, err := h.drive.Delete(r.Context(), p, q.Get("path"), permanent, days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *DriveHandler) Restore(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.RestoreRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.drive.Restore(r.Context(), p, payload.Path); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"restored": payload.Path})
}

func (h *DriveHandler) RestoreBatch(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.RestoreBatchRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if len(payload.Paths) == 0 {
		writeError(w, apierror.New("BAD_REQUEST", "paths is required", "paths", http.StatusBadRequest))
		return
	}

	writeSuccess(w, http.StatusOK, h.drive.RestoreBatch(r.Context(), p, payload.Paths))
}

func (h *DriveHandler) Move(w http.ResponseWriter, r *http.Request) {
	h.moveOrCopy(w, r, h.drive.Move)
}

func (h *DriveHandler) Copy(w http.ResponseWriter, r *http.Request) {
	h.moveOrCopy(w, r, h.drive.Copy)
}

func (h *DriveHandler) moveOrCopy(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, p model.Principal, src string, dst string) (model.MoveCopyResponse, error)) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.MoveCopyRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(payload.Source) == "" || strings.TrimSpace(payload.Destination) == "" {
		writeError(w, apierror.New("BAD_REQUEST", "source and destination are required", "", http.StatusBadRequest))
		return
	}

	resp, err := op(r.Context(), p, payload.Source, payload.Destination)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *DriveHandler) Search(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	data, err := h.drive.Search(r.Context(), p, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, data)
}

func (h *DriveHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	items, err := h.drive.ListTrash(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items)
}

func (h *DriveHandler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	resp, err := h.drive.PurgeTrash(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp)
}

func (h *DriveHandler) ListByType(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r)
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	class := chi.URLParam(r, "class")
	data, err := h.drive.ListByType(r.Context(), p, class)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, data)
}

func (h *DriveHandler) TypeClasses(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.drive.TypeClasses())
}

// serveStream writes a file body with download headers. Size may be zero
// for unknown lengths. Inline rendering is only honored for images so
// stored HTML can never execute in the drive's origin.
func serveStream(w http.ResponseWriter, name string, size int64, body io.Reader, inline bool) {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	disposition := "attachment"
	if inline && util.IsImageMIME(contentType) {
		disposition = "inline"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, name))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}

	_, _ = io.Copy(w, body)
}
