package handler

import (
	"net/http"
	"strconv"

	"hdfs-drive/internal/repository"
	"hdfs-drive/internal/service"
)

type AdminHandler struct {
	auth  *service.AuthService
	oplog *service.OpLogService
}

func NewAdminHandler(auth *service.AuthService, oplog *service.OpLogService) *AdminHandler {
	return &AdminHandler{auth: auth, oplog: oplog}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users)
}

func (h *AdminHandler) QueryLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	records, err := h.oplog.Query(r.Context(), repository.OpLogQuery{
		Username: q.Get("username"),
		Action:   q.Get("action"),
		Status:   q.Get("status"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, records)
}
