package service

import (
	"context"
	"log/slog"
	"time"

	"hdfs-drive/internal/model"
	"hdfs-drive/internal/repository"
)

// OpLogService writes the administrative operations log. Records go out on
// a background context so a slow database never blocks a drive mutation,
// and a failed insert only logs.
type OpLogService struct {
	repo *repository.OpLogRepository
	log  *slog.Logger
}

func NewOpLogService(repo *repository.OpLogRepository, log *slog.Logger) *OpLogService {
	return &OpLogService{repo: repo, log: log}
}

// Record implements OpRecorder.
func (s *OpLogService) Record(username string, action string, path string, opErr error) {
	rec := model.OpRecord{
		OccurredAt: time.Now().UTC(),
		Username:   username,
		Action:     action,
		Path:       path,
		Status:     "ok",
	}
	if opErr != nil {
		rec.Status = "error"
		rec.Detail = opErr.Error()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.repo.Insert(ctx, rec); err != nil {
			s.log.Warn("write operation log", "action", action, "error", err)
		}
	}()
}

func (s *OpLogService) Query(ctx context.Context, q repository.OpLogQuery) ([]model.OpRecord, error) {
	return s.repo.Query(ctx, q)
}
