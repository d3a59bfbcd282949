// Package hdfs is the storage port for the drive: identity-scoped primitive
// operations against the backing distributed file store. Two adapters exist,
// a WebHDFS REST gateway for production and an in-memory tree for tests.
package hdfs

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

// Entry describes one object in the store. Path is always the full storage
// path, never a child-relative name.
type Entry struct {
	Path        string
	IsDirectory bool
	Size        int64
	ModifiedAt  time.Time
}

func (e Entry) Name() string {
	return path.Base(e.Path)
}

// Client issues storage operations under a single fixed identity. Permission
// checks happen in the store itself; a Client never widens the identity it
// was minted for.
type Client interface {
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (Entry, error)
	ListDir(ctx context.Context, dir string) ([]Entry, error)
	ListRecursive(ctx context.Context, dir string) ([]Entry, error)
	Mkdir(ctx context.Context, path string) error
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Create(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error)
	Delete(ctx context.Context, path string, recursive bool) error
	Rename(ctx context.Context, src string, dst string) error
	SetOwner(ctx context.Context, path string, owner string, group string) error
	SetPermission(ctx context.Context, path string, octal string) error
}

// Connector mints identity-scoped clients. Each operation acquires its own
// client; clients are cheap and are not shared across principals.
type Connector interface {
	As(user string) Client
}

// WriteAll streams r into a newly created file at dst, replacing any
// existing file.
func WriteAll(ctx context.Context, c Client, dst string, r io.Reader) error {
	w, err := c.Create(ctx, dst, true)
	if err != nil {
		return err
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}

	return w.Close()
}

// CopyPath copies src to dst within the store as a stream copy, recursing
// into directories. The store has no native copy primitive.
func CopyPath(ctx context.Context, c Client, src string, dst string) error {
	entry, err := c.Stat(ctx, src)
	if err != nil {
		return err
	}

	if !entry.IsDirectory {
		return copyFile(ctx, c, src, dst)
	}

	if err := c.Mkdir(ctx, dst); err != nil {
		return err
	}

	children, err := c.ListDir(ctx, src)
	if err != nil {
		return err
	}

	for _, child := range children {
		target := path.Join(dst, child.Name())
		if err := CopyPath(ctx, c, child.Path, target); err != nil {
			return fmt.Errorf("copy %q: %w", child.Path, err)
		}
	}

	return nil
}

func copyFile(ctx context.Context, c Client, src string, dst string) error {
	in, err := c.Open(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()

	return WriteAll(ctx, c, dst, in)
}
