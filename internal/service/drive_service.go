package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"hdfs-drive/internal/hdfs"
	"hdfs-drive/internal/model"
	"hdfs-drive/internal/trash"
	"hdfs-drive/internal/util"
	"hdfs-drive/internal/vfs"
)

// OpRecorder receives one record per drive mutation. Recording is
// best-effort and never fails the operation it describes.
type OpRecorder interface {
	Record(username string, action string, path string, err error)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, string, string, error) {}

// DriveService implements the tenant-facing drive: listing, mutation through
// the escalating executor, the trash ledger, and the synthetic views.
type DriveService struct {
	conn      hdfs.Connector
	resolver  *vfs.Resolver
	exec      *vfs.Executor
	ledger    *trash.Ledger
	classes   *vfs.ClassSet
	retention time.Duration
	adminUser string
	recorder  OpRecorder
	log       *slog.Logger
}

func NewDriveService(
	conn hdfs.Connector,
	resolver *vfs.Resolver,
	exec *vfs.Executor,
	ledger *trash.Ledger,
	classes *vfs.ClassSet,
	retention time.Duration,
	adminUser string,
	recorder OpRecorder,
	log *slog.Logger,
) *DriveService {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &DriveService{
		conn:      conn,
		resolver:  resolver,
		exec:      exec,
		ledger:    ledger,
		classes:   classes,
		retention: retention,
		adminUser: adminUser,
		recorder:  recorder,
		log:       log,
	}
}

// clientFor mints a storage client for the identity the principal acts as.
// Admin principals act as the cluster admin user.
func (s *DriveService) clientFor(p model.Principal) hdfs.Client {
	if p.Admin {
		return s.conn.As(s.adminUser)
	}

	return s.conn.As(p.Name)
}

// AdminDelete removes a storage path under the admin identity. The purge
// scheduler runs on this.
func (s *DriveService) AdminDelete(ctx context.Context, actualPath string, recursive bool) error {
	return s.conn.As(s.adminUser).Delete(ctx, actualPath, recursive)
}

// List returns the contents of a virtual directory. The reserved views
// dispatch to their own listings: /.type/<class> scans by extension and
// /.trash shows the caller's trash.
func (s *DriveService) List(ctx context.Context, p model.Principal, virtualPath string) (model.ListData, error) {
	actual, err := s.resolver.Resolve(p, virtualPath)
	if err != nil {
		return model.ListData{}, err
	}

	if strings.HasPrefix(actual, vfs.TypePrefix) {
		return s.ListByType(ctx, p, strings.TrimPrefix(actual, vfs.TypePrefix))
	}
	if strings.HasPrefix(actual, vfs.TrashPrefix) {
		items, err := s.ListTrash(ctx, p)
		if err != nil {
			return model.ListData{}, err
		}
		return model.ListData{Path: vfs.TrashPrefix, Items: trashAsFiles(items)}, nil
	}

	c := s.clientFor(p)
	entries, err := c.ListDir(ctx, actual)
	if errors.Is(err, fs.ErrNotExist) && actual == s.resolver.RootFor(p) {
		// First contact for this tenant: bring the home directory up.
		if mkErr := s.exec.Mkdir(ctx, p, actual); mkErr != nil {
			return model.ListData{}, s.classify(mkErr)
		}
		entries, err = c.ListDir(ctx, actual)
	}
	if err != nil {
		return model.ListData{}, s.classify(err)
	}

	items := make([]model.FileItem, 0, len(entries))
	for _, entry := range entries {
		if s.isTrashed(entry.Path) {
			continue
		}
		items = append(items, s.toFileItem(p, entry))
	}
	sortFileItems(items)

	return model.ListData{Path: s.resolver.ToVirtual(p, actual), Items: items}, nil
}

func (s *DriveService) CreateDirectory(ctx context.Context, p model.Principal, parentPath string, name string) (model.DirectoryCreateData, error) {
	cleaned, err := util.SanitizeFilename(name, false)
	if err != nil {
		return model.DirectoryCreateData{}, err
	}

	parent, err := s.resolver.Resolve(p, parentPath)
	if err != nil {
		return model.DirectoryCreateData{}, err
	}
	if vfs.IsReserved(parent) {
		return model.DirectoryCreateData{}, fmt.Errorf("cannot create directories in a reserved view: %w", model.ErrInvalidInput)
	}

	actual := path.Join(parent, cleaned)
	if exists, err := s.clientFor(p).Exists(ctx, actual); err == nil && exists {
		return model.DirectoryCreateData{}, fmt.Errorf("%q already exists: %w", cleaned, model.ErrPathConflict)
	}

	err = s.exec.Mkdir(ctx, p, actual)
	s.recorder.Record(p.Name, "mkdir", actual, err)
	if err != nil {
		return model.DirectoryCreateData{}, s.classify(err)
	}

	return model.DirectoryCreateData{
		Name:      cleaned,
		Path:      s.resolver.ToVirtual(p, actual),
		Type:      "directory",
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Save writes a small text file in one shot.
func (s *DriveService) Save(ctx context.Context, p model.Principal, virtualPath string, content []byte) (model.FileItem, error) {
	actual, err := s.resolveConcrete(p, virtualPath)
	if err != nil {
		return model.FileItem{}, err
	}

	err = s.exec.Save(ctx, p, actual, content)
	s.recorder.Record(p.Name, "save", actual, err)
	if err != nil {
		return model.FileItem{}, s.classify(err)
	}

	return model.FileItem{
		Name:       path.Base(actual),
		Path:       s.resolver.ToVirtual(p, actual),
		Type:       "file",
		Size:       int64(len(content)),
		SizeHuman:  util.HumanSize(int64(len(content))),
		Extension:  path.Ext(actual),
		ModifiedAt: time.Now().UTC(),
	}, nil
}

// Upload streams a spooled request body into the store. open must yield a
// fresh reader on every call; an escalated retry consumes a second one.
func (s *DriveService) Upload(ctx context.Context, p model.Principal, dirPath string, filename string, size int64, open func() (io.ReadCloser, error)) (model.UploadItem, error) {
	cleaned, err := util.SanitizeFilename(filename, false)
	if err != nil {
		return model.UploadItem{}, err
	}

	dir, err := s.resolveConcrete(p, dirPath)
	if err != nil {
		return model.UploadItem{}, err
	}

	actual := path.Join(dir, cleaned)
	err = s.exec.Upload(ctx, p, actual, open)
	s.recorder.Record(p.Name, "upload", actual, err)
	if err != nil {
		return model.UploadItem{}, s.classify(err)
	}

	return model.UploadItem{
		Name: cleaned,
		Path: s.resolver.ToVirtual(p, actual),
		Size: size,
	}, nil
}

// Download opens a file for reading under the caller's own identity. Reads
// are never escalated; what the tenant cannot read stays unread.
func (s *DriveService) Download(ctx context.Context, p model.Principal, virtualPath string) (hdfs.Entry, io.ReadCloser, error) {
	actual, err := s.resolveConcrete(p, virtualPath)
	if err != nil {
		return hdfs.Entry{}, nil, err
	}

	c := s.clientFor(p)
	entry, err := c.Stat(ctx, actual)
	if err != nil {
		return hdfs.Entry{}, nil, s.classify(err)
	}
	if entry.IsDirectory {
		return hdfs.Entry{}, nil, fmt.Errorf("%q is a directory: %w", virtualPath, model.ErrInvalidInput)
	}

	r, err := c.Open(ctx, actual)
	if err != nil {
		return hdfs.Entry{}, nil, s.classify(err)
	}

	return entry, r, nil
}

// Delete removes a path. The default is a soft delete into the trash
// ledger; the data stays in place and listings hide it until it expires or
// is restored. retainDays > 0 pins an explicit deadline, otherwise the
// deadline stays open and the retention in force at purge time decides.
func (s *DriveService) Delete(ctx context.Context, p model.Principal, virtualPath string, permanent bool, retainDays int) (model.DeleteResponse, error) {
	actual, err := s.resolveConcrete(p, virtualPath)
	if err != nil {
		return model.DeleteResponse{}, err
	}

	c := s.clientFor(p)
	entry, err := c.Stat(ctx, actual)
	if err != nil {
		return model.DeleteResponse{}, s.classify(err)
	}

	if permanent {
		err = s.exec.Delete(ctx, p, actual, entry.IsDirectory)
		s.recorder.Record(p.Name, "delete", actual, err)
		if err != nil {
			return model.DeleteResponse{}, s.classify(err)
		}
		if _, err := s.ledger.Remove(actual); err != nil {
			s.log.Warn("drop ledger entry after permanent delete", "path", actual, "error", err)
		}

		return model.DeleteResponse{Path: s.resolver.ToVirtual(p, actual), Permanent: true}, nil
	}

	now := time.Now().UTC()
	rec := trash.Entry{
		Path:        actual,
		IsDirectory: entry.IsDirectory,
		Name:        entry.Name(),
		DeletedAt:   now.UnixMilli(),
	}
	if retainDays > 0 {
		rec.ExpireAt = now.Add(time.Duration(retainDays) * 24 * time.Hour).UnixMilli()
	}

	err = s.ledger.Add(rec)
	s.recorder.Record(p.Name, "trash", actual, err)
	if err != nil {
		return model.DeleteResponse{}, err
	}

	return model.DeleteResponse{Path: s.resolver.ToVirtual(p, actual), Permanent: false}, nil
}

// Restore takes a path out of the trash ledger, making it visible again.
func (s *DriveService) Restore(ctx context.Context, p model.Principal, virtualPath string) error {
	actual, err := s.resolveConcrete(p, virtualPath)
	if err != nil {
		return err
	}

	entry, ok := s.ledger.Get(actual)
	if !ok {
		return fmt.Errorf("%q: %w", virtualPath, model.ErrTrashEntryNotFound)
	}
	if !s.resolver.Owns(p, entry.Path) {
		return fmt.Errorf("%q: %w", virtualPath, model.ErrAccessDenied)
	}

	_, err = s.ledger.Remove(actual)
	s.recorder.Record(p.Name, "restore", actual, err)

	return err
}

func (s *DriveService) RestoreBatch(ctx context.Context, p model.Principal, virtualPaths []string) model.RestoreBatchResponse {
	results := make(map[string]bool, len(virtualPaths))
	for _, vp := range virtualPaths {
		err := s.Restore(ctx, p, vp)
		if err != nil {
			s.log.Debug("batch restore item failed", "path", vp, "error", err)
		}
		results[vp] = err == nil
	}

	return model.RestoreBatchResponse{Results: results}
}

func (s *DriveService) Move(ctx context.Context, p model.Principal, source string, destination string) (model.MoveCopyResponse, error) {
	src, dst, err := s.resolvePair(ctx, p, source, destination)
	if err != nil {
		return model.MoveCopyResponse{}, err
	}

	err = s.exec.Move(ctx, p, src, dst)
	s.recorder.Record(p.Name, "move", dst, err)
	if err != nil {
		return model.MoveCopyResponse{}, s.classify(err)
	}

	// A trashed path that moves is effectively restored under its new name.
	if _, err := s.ledger.Remove(src); err != nil {
		s.log.Warn("drop ledger entry after move", "path", src, "error", err)
	}

	return model.MoveCopyResponse{
		From: s.resolver.ToVirtual(p, src),
		To:   s.resolver.ToVirtual(p, dst),
	}, nil
}

func (s *DriveService) Copy(ctx context.Context, p model.Principal, source string, destination string) (model.MoveCopyResponse, error) {
	src, dst, err := s.resolvePair(ctx, p, source, destination)
	if err != nil {
		return model.MoveCopyResponse{}, err
	}

	err = s.exec.Copy(ctx, p, src, dst)
	s.recorder.Record(p.Name, "copy", dst, err)
	if err != nil {
		return model.MoveCopyResponse{}, s.classify(err)
	}

	return model.MoveCopyResponse{
		From: s.resolver.ToVirtual(p, src),
		To:   s.resolver.ToVirtual(p, dst),
	}, nil
}

// Search walks the caller's tree and matches entry names case-insensitively.
func (s *DriveService) Search(ctx context.Context, p model.Principal, query string) (model.ListData, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.ListData{}, fmt.Errorf("search query is empty: %w", model.ErrInvalidInput)
	}

	root := s.resolver.RootFor(p)
	entries, err := s.clientFor(p).ListRecursive(ctx, root)
	if err != nil {
		return model.ListData{}, s.classify(err)
	}

	needle := strings.ToLower(query)
	items := make([]model.FileItem, 0)
	for _, entry := range entries {
		if s.isTrashed(entry.Path) {
			continue
		}
		if strings.Contains(strings.ToLower(entry.Name()), needle) {
			items = append(items, s.toFileItem(p, entry))
		}
	}
	sortFileItems(items)

	return model.ListData{Path: "/", Items: items}, nil
}

// ListByType scans the caller's tree for files in the named class.
func (s *DriveService) ListByType(ctx context.Context, p model.Principal, class string) (model.ListData, error) {
	exts, err := s.classes.Extensions(class)
	if err != nil {
		return model.ListData{}, err
	}

	root := s.resolver.RootFor(p)
	entries, err := vfs.ScanByExtensions(ctx, s.clientFor(p), root, exts)
	if err != nil {
		return model.ListData{}, s.classify(err)
	}

	items := make([]model.FileItem, 0, len(entries))
	for _, entry := range entries {
		if s.isTrashed(entry.Path) {
			continue
		}
		items = append(items, s.toFileItem(p, entry))
	}
	sortFileItems(items)

	return model.ListData{Path: vfs.TypePrefix + strings.ToLower(class), Items: items}, nil
}

// ListTrash shows the caller's soft-deleted paths, soonest expiry first.
// Expired entries are purged before listing so the view never shows a path
// that is already doomed.
func (s *DriveService) ListTrash(ctx context.Context, p model.Principal) ([]model.TrashItem, error) {
	if _, err := s.ledger.PurgeExpired(ctx, s.retention, s.AdminDelete); err != nil {
		s.log.Warn("purge before trash listing", "error", err)
	}

	admin := s.conn.As(s.adminUser)
	items := make([]model.TrashItem, 0)

	for _, entry := range s.ledger.List() {
		if !s.resolver.Owns(p, entry.Path) {
			continue
		}

		item := model.TrashItem{
			Name:         entry.Name,
			Path:         s.resolver.ToVirtual(p, entry.Path),
			Type:         entryType(entry.IsDirectory),
			OriginalPath: entry.Path,
			DeletedAt:    time.UnixMilli(entry.DeletedAt).UTC(),
			ExpireAt:     entry.EffectiveExpire(s.retention).UTC(),
		}

		// Size and mtime are decoration; a stat failure must not hide the
		// entry.
		if st, err := admin.Stat(ctx, entry.Path); err == nil {
			item.Size = st.Size
			item.ModifiedAt = st.ModifiedAt
		}

		items = append(items, item)
	}

	// Soonest-to-expire first, so the top of the list is what the next
	// purge pass will take.
	sort.Slice(items, func(i, j int) bool { return items[i].ExpireAt.Before(items[j].ExpireAt) })

	return items, nil
}

// PurgeTrash forces a purge pass immediately.
func (s *DriveService) PurgeTrash(ctx context.Context, p model.Principal) (model.PurgeResponse, error) {
	if !p.Admin {
		return model.PurgeResponse{}, model.ErrAccessDenied
	}

	purged, err := s.ledger.PurgeExpired(ctx, s.retention, s.AdminDelete)
	s.recorder.Record(p.Name, "purge", "", err)
	if err != nil {
		s.log.Warn("forced purge", "purged", len(purged), "error", err)
	}

	return model.PurgeResponse{Purged: purged}, nil
}

// TypeClasses lists the configured class names.
func (s *DriveService) TypeClasses() []string {
	return s.classes.Names()
}

// resolveConcrete resolves a virtual path and rejects the reserved views,
// for operations that need a real storage path.
func (s *DriveService) resolveConcrete(p model.Principal, virtualPath string) (string, error) {
	actual, err := s.resolver.Resolve(p, virtualPath)
	if err != nil {
		return "", err
	}
	if vfs.IsReserved(actual) {
		return "", fmt.Errorf("%q is a reserved view: %w", virtualPath, model.ErrInvalidInput)
	}

	return actual, nil
}

func (s *DriveService) resolvePair(ctx context.Context, p model.Principal, source string, destination string) (string, string, error) {
	src, err := s.resolveConcrete(p, source)
	if err != nil {
		return "", "", err
	}
	dst, err := s.resolveConcrete(p, destination)
	if err != nil {
		return "", "", err
	}
	if src == dst {
		return "", "", fmt.Errorf("source and destination are the same: %w", model.ErrInvalidInput)
	}
	if exists, err := s.clientFor(p).Exists(ctx, dst); err == nil && exists {
		return "", "", fmt.Errorf("%q already exists: %w", destination, model.ErrPathConflict)
	}

	return src, dst, nil
}

func (s *DriveService) isTrashed(actualPath string) bool {
	_, ok := s.ledger.Get(actualPath)
	return ok
}

func (s *DriveService) toFileItem(p model.Principal, entry hdfs.Entry) model.FileItem {
	item := model.FileItem{
		Name:       entry.Name(),
		Path:       s.resolver.ToVirtual(p, entry.Path),
		Type:       entryType(entry.IsDirectory),
		ModifiedAt: entry.ModifiedAt,
	}
	if !entry.IsDirectory {
		item.Size = entry.Size
		item.SizeHuman = util.HumanSize(entry.Size)
		item.Extension = path.Ext(entry.Path)
	}

	return item
}

// classify maps storage-layer failures onto the domain error taxonomy.
func (s *DriveService) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", model.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", model.ErrAccessDenied, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %v", model.ErrPathConflict, err)
	default:
		return err
	}
}

func entryType(isDir bool) string {
	if isDir {
		return "directory"
	}

	return "file"
}

func sortFileItems(items []model.FileItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Type != items[j].Type {
			return items[i].Type == "directory"
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
}

func trashAsFiles(items []model.TrashItem) []model.FileItem {
	out := make([]model.FileItem, 0, len(items))
	for _, item := range items {
		out = append(out, model.FileItem{
			Name:       item.Name,
			Path:       item.Path,
			Type:       item.Type,
			Size:       item.Size,
			SizeHuman:  util.HumanSize(item.Size),
			ModifiedAt: item.ModifiedAt,
		})
	}

	return out
}
