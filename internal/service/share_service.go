package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"hdfs-drive/internal/hdfs"
	"hdfs-drive/internal/model"
	"hdfs-drive/internal/repository"
	"hdfs-drive/internal/vfs"
)

const (
	defaultShareTTL = 7 * 24 * time.Hour
	maxShareTTL     = 90 * 24 * time.Hour
)

// ShareService hands out public, token-addressed download links for single
// files. A public download runs under the share owner's storage identity,
// never under an escalated one.
type ShareService struct {
	shares    *repository.ShareRepository
	conn      hdfs.Connector
	resolver  *vfs.Resolver
	adminUser string
}

func NewShareService(shares *repository.ShareRepository, conn hdfs.Connector, resolver *vfs.Resolver, adminUser string) *ShareService {
	return &ShareService{shares: shares, conn: conn, resolver: resolver, adminUser: adminUser}
}

func (s *ShareService) Create(ctx context.Context, p model.Principal, virtualPath string, expiresIn string) (model.ShareRecord, error) {
	actual, err := s.resolver.Resolve(p, virtualPath)
	if err != nil {
		return model.ShareRecord{}, err
	}
	if vfs.IsReserved(actual) {
		return model.ShareRecord{}, fmt.Errorf("cannot share a reserved view: %w", model.ErrInvalidInput)
	}

	entry, err := s.conn.As(s.storageIdentity(p)).Stat(ctx, actual)
	if err != nil {
		return model.ShareRecord{}, fmt.Errorf("%w: %v", model.ErrNotFound, err)
	}
	if entry.IsDirectory {
		return model.ShareRecord{}, fmt.Errorf("only files can be shared: %w", model.ErrInvalidInput)
	}

	ttl := defaultShareTTL
	if expiresIn != "" {
		parsed, err := time.ParseDuration(expiresIn)
		if err != nil || parsed <= 0 {
			return model.ShareRecord{}, fmt.Errorf("expires_in %q: %w", expiresIn, model.ErrInvalidInput)
		}
		ttl = parsed
	}
	if ttl > maxShareTTL {
		ttl = maxShareTTL
	}

	now := time.Now().UTC()
	record := model.ShareRecord{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		Path:      actual,
		Name:      path.Base(actual),
		Owner:     s.storageIdentity(p),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.shares.Create(ctx, record); err != nil {
		return model.ShareRecord{}, err
	}

	return record, nil
}

func (s *ShareService) List(ctx context.Context, p model.Principal) ([]model.ShareRecord, error) {
	return s.shares.ListByOwner(ctx, s.storageIdentity(p))
}

func (s *ShareService) Revoke(ctx context.Context, p model.Principal, shareID string) error {
	return s.shares.Revoke(ctx, shareID, s.storageIdentity(p))
}

// OpenByToken resolves a share token and opens the file under the owner's
// identity.
func (s *ShareService) OpenByToken(ctx context.Context, token string) (model.ShareRecord, hdfs.Entry, io.ReadCloser, error) {
	record, err := s.shares.ResolveToken(ctx, token)
	if err != nil {
		return model.ShareRecord{}, hdfs.Entry{}, nil, err
	}

	c := s.conn.As(record.Owner)
	entry, err := c.Stat(ctx, record.Path)
	if err != nil {
		return model.ShareRecord{}, hdfs.Entry{}, nil, fmt.Errorf("%w: %v", model.ErrNotFound, err)
	}

	r, err := c.Open(ctx, record.Path)
	if err != nil {
		return model.ShareRecord{}, hdfs.Entry{}, nil, fmt.Errorf("%w: %v", model.ErrNotFound, err)
	}

	return record, entry, r, nil
}

// storageIdentity is the identity a principal's shares run as. It matches
// the identity the drive itself uses for the principal.
func (s *ShareService) storageIdentity(p model.Principal) string {
	if p.Admin {
		return s.adminUser
	}

	return p.Name
}
