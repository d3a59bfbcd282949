package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hdfs-drive/internal/model"
)

type ShareRepository struct {
	pool *pgxpool.Pool
}

func NewShareRepository(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{pool: pool}
}

func (r *ShareRepository) Create(ctx context.Context, record model.ShareRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO shares (id, token, path, name, owner, created_at, expires_at)
		 VALUES ($1, $2::uuid, $3, $4, $5, $6, $7)`,
		record.ID, record.Token, record.Path, record.Name, record.Owner,
		record.CreatedAt, record.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create share: %w", err)
	}
	return nil
}

func (r *ShareRepository) ListByOwner(ctx context.Context, owner string) ([]model.ShareRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, token, path, name, owner, created_at, expires_at
		 FROM shares
		 WHERE owner = $1 AND expires_at > now()
		 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()

	records := make([]model.ShareRecord, 0)
	for rows.Next() {
		var s model.ShareRecord
		if err := rows.Scan(&s.ID, &s.Token, &s.Path, &s.Name, &s.Owner, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		records = append(records, s)
	}
	return records, rows.Err()
}

func (r *ShareRepository) Revoke(ctx context.Context, shareID string, owner string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM shares WHERE id = $1 AND owner = $2`, shareID, owner)
	if err != nil {
		return fmt.Errorf("revoke share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrShareNotFound
	}
	return nil
}

func (r *ShareRepository) ResolveToken(ctx context.Context, token string) (model.ShareRecord, error) {
	var s model.ShareRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, token, path, name, owner, created_at, expires_at
		 FROM shares WHERE token = $1::uuid`, token).
		Scan(&s.ID, &s.Token, &s.Path, &s.Name, &s.Owner, &s.CreatedAt, &s.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.ShareRecord{}, model.ErrShareNotFound
	}
	if err != nil {
		return model.ShareRecord{}, fmt.Errorf("resolve share token: %w", err)
	}

	if time.Now().UTC().After(s.ExpiresAt) {
		return model.ShareRecord{}, model.ErrShareExpired
	}

	return s, nil
}

func (r *ShareRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shares WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired shares: %w", err)
	}
	return tag.RowsAffected(), nil
}
