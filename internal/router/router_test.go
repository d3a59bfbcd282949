package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hdfs-drive/internal/config"
	"hdfs-drive/internal/handler"
	"hdfs-drive/internal/hdfs"
	"hdfs-drive/internal/middleware"
	"hdfs-drive/internal/model"
	"hdfs-drive/internal/router"
	"hdfs-drive/internal/service"
	"hdfs-drive/internal/trash"
	"hdfs-drive/internal/vfs"
)

// staticValidator treats the bearer token as the username. "admin" carries
// the admin role.
type staticValidator struct{}

func (staticValidator) ValidateToken(token string, _ string) (*model.AuthClaims, error) {
	if token == "" || token == "bogus" {
		return nil, model.ErrUnauthenticated
	}

	role := "user"
	if token == "admin" {
		role = "admin"
	}

	return &model.AuthClaims{
		UserID:   "id-" + token,
		Username: token,
		Role:     role,
		Type:     "access",
	}, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	store := hdfs.NewMemory("hdfs")
	resolver := vfs.NewResolver("/users")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := vfs.NewExecutor(store, resolver, "hdfs", log)

	ledger, err := trash.NewLedger(filepath.Join(t.TempDir(), "trash.json"))
	require.NoError(t, err)

	drive := service.NewDriveService(store, resolver, exec, ledger, vfs.DefaultClasses(), 720*time.Hour, "hdfs", nil, log)
	thumbs := service.NewThumbnailService(drive, t.TempDir())
	shares := service.NewShareService(nil, store, resolver, "hdfs")
	auth := service.NewAuthService(nil, "test-secret", time.Minute, time.Hour)

	require.NoError(t, store.As("hdfs").Mkdir(context.Background(), "/users"))

	cfg := &config.Config{
		RequestTimeout: 5 * time.Second,
		CORSOrigins:    []string{"*"},
	}

	return router.New(
		cfg,
		middleware.NewAuthMiddleware(staticValidator{}),
		handler.NewAuthHandler(auth),
		handler.NewDriveHandler(drive, thumbs, 1<<20),
		handler.NewShareHandler(shares),
		handler.NewAdminHandler(auth, nil),
		nil,
	)
}

func doJSON(t *testing.T, mux http.Handler, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/", "bogus", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSaveListDownloadRoundTrip(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/files/save", "alice", model.SaveFileRequest{
		Path:    "/notes.txt",
		Content: "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "notes.txt")

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files/download?path=/notes.txt", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello", rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")
}

func TestMultipartUpload(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("path", "/"))
	part, err := mw.CreateFormFile("files", "report.txt")
	require.NoError(t, err)
	_, err = fmt.Fprint(part, "quarterly numbers")
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload", &buf)
	req.Header.Set("Authorization", "Bearer alice")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files/download?path=/report.txt", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "quarterly numbers", rec.Body.String())
}

func TestTenantsAreIsolated(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/files/save", "alice", model.SaveFileRequest{
		Path:    "/secret.txt",
		Content: "mine",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/users/alice", "bob", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// The admin sees the raw namespace.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/users/alice", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "secret.txt")
}

func TestTrashFlowOverHTTP(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/files/save", "alice", model.SaveFileRequest{
		Path:    "/old.txt",
		Content: "stale",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, "/api/v1/files?path=/old.txt", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "old.txt")

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/trash", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "old.txt")

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/trash/restore", "alice", model.RestoreRequest{Path: "/old.txt"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "old.txt")
}

func TestRestoreBatchOverHTTP(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	for _, p := range []string{"/a.txt", "/b.txt"} {
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/files/save", "alice", model.SaveFileRequest{
			Path:    p,
			Content: "x",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, mux, http.MethodDelete, "/api/v1/files?path="+p, "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/trash/restore-batch", "alice", model.RestoreBatchRequest{
		Paths: []string{"/a.txt", "/b.txt", "/never-deleted.txt"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Results map[string]bool `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.True(t, envelope.Data.Results["/a.txt"])
	require.True(t, envelope.Data.Results["/b.txt"])
	require.False(t, envelope.Data.Results["/never-deleted.txt"])

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/files?path=/", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "a.txt")
	require.Contains(t, rec.Body.String(), "b.txt")
}

func TestForcedPurgeIsAdminOnly(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/trash/purge", "alice", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/trash/purge", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTypeViewOverHTTP(t *testing.T) {
	t.Parallel()

	mux := newTestServer(t)

	for _, p := range []string{"/photo.png", "/clip.mp4", "/readme.txt"} {
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/files/save", "alice", model.SaveFileRequest{
			Path:    p,
			Content: "x",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/types/images", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "photo.png")
	require.NotContains(t, rec.Body.String(), "clip.mp4")

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/types/nonsense", "alice", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
