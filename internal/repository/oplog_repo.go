package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"hdfs-drive/internal/model"
)

type OpLogRepository struct {
	pool *pgxpool.Pool
}

func NewOpLogRepository(pool *pgxpool.Pool) *OpLogRepository {
	return &OpLogRepository{pool: pool}
}

func (r *OpLogRepository) Insert(ctx context.Context, rec model.OpRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO operation_log (occurred_at, username, action, path, status, detail)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.OccurredAt, rec.Username, rec.Action, rec.Path, rec.Status, rec.Detail)
	if err != nil {
		return fmt.Errorf("insert operation record: %w", err)
	}
	return nil
}

// OpLogQuery narrows a log listing. Zero values mean no filter.
type OpLogQuery struct {
	Username string
	Action   string
	Status   string
	Limit    int
}

func (r *OpLogRepository) Query(ctx context.Context, q OpLogQuery) ([]model.OpRecord, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if username := strings.TrimSpace(q.Username); username != "" {
		where = append(where, fmt.Sprintf("username = $%d", argIdx))
		args = append(args, username)
		argIdx++
	}
	if action := strings.TrimSpace(q.Action); action != "" {
		where = append(where, fmt.Sprintf("lower(action) = lower($%d)", argIdx))
		args = append(args, action)
		argIdx++
	}
	if status := strings.TrimSpace(q.Status); status != "" {
		where = append(where, fmt.Sprintf("lower(status) = lower($%d)", argIdx))
		args = append(args, status)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT id, occurred_at, username, action, path, status, detail
		 FROM operation_log %s
		 ORDER BY occurred_at DESC
		 LIMIT $%d`, whereClause, argIdx)
	args = append(args, q.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operation log: %w", err)
	}
	defer rows.Close()

	records := make([]model.OpRecord, 0)
	for rows.Next() {
		var rec model.OpRecord
		if err := rows.Scan(&rec.ID, &rec.OccurredAt, &rec.Username, &rec.Action, &rec.Path, &rec.Status, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan operation record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
