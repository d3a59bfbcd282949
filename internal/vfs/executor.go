package vfs

import (
	"bytes"
	"context"
	"io"
	"log/slog"

	"hdfs-drive/internal/hdfs"
	"hdfs-drive/internal/model"
)

const (
	dirMode  = "700"
	fileMode = "600"
)

// Executor runs storage mutations on behalf of a principal. The first
// attempt always runs under the tenant's own identity. When that fails and
// the caller is not an admin, the operation is retried under the admin
// identity; on success the touched paths are handed back to the tenant with
// restrictive permissions, and on a second failure the tenant's original
// error is returned, since that is the one describing the caller's view.
type Executor struct {
	conn      hdfs.Connector
	resolver  *Resolver
	adminUser string
	log       *slog.Logger
}

func NewExecutor(conn hdfs.Connector, resolver *Resolver, adminUser string, log *slog.Logger) *Executor {
	return &Executor{conn: conn, resolver: resolver, adminUser: adminUser, log: log}
}

// owned is a path whose ownership must be restored to the tenant after an
// escalated mutation, with the mode to clamp it to ("" leaves the mode).
type owned struct {
	path string
	mode string
}

func (e *Executor) Mkdir(ctx context.Context, p model.Principal, actualPath string) error {
	return e.run(ctx, p, []owned{{actualPath, dirMode}}, func(c hdfs.Client) error {
		return c.Mkdir(ctx, actualPath)
	})
}

func (e *Executor) Save(ctx context.Context, p model.Principal, actualPath string, content []byte) error {
	return e.run(ctx, p, []owned{{actualPath, fileMode}}, func(c hdfs.Client) error {
		return hdfs.WriteAll(ctx, c, actualPath, bytes.NewReader(content))
	})
}

// Upload streams a new file into the store. The payload source is a factory
// because an escalated retry needs a fresh reader; callers spool request
// bodies to a temp file first.
func (e *Executor) Upload(ctx context.Context, p model.Principal, actualPath string, open func() (io.ReadCloser, error)) error {
	return e.run(ctx, p, []owned{{actualPath, fileMode}}, func(c hdfs.Client) error {
		r, err := open()
		if err != nil {
			return err
		}
		defer r.Close()

		return hdfs.WriteAll(ctx, c, actualPath, r)
	})
}

func (e *Executor) Delete(ctx context.Context, p model.Principal, actualPath string, recursive bool) error {
	return e.run(ctx, p, nil, func(c hdfs.Client) error {
		return c.Delete(ctx, actualPath, recursive)
	})
}

func (e *Executor) Move(ctx context.Context, p model.Principal, src string, dst string) error {
	// Ownership of the moved tree follows it; the mode does not change.
	return e.run(ctx, p, []owned{{dst, ""}}, func(c hdfs.Client) error {
		return c.Rename(ctx, src, dst)
	})
}

func (e *Executor) Copy(ctx context.Context, p model.Principal, src string, dst string) error {
	return e.run(ctx, p, []owned{{dst, fileMode}}, func(c hdfs.Client) error {
		return hdfs.CopyPath(ctx, c, src, dst)
	})
}

func (e *Executor) run(ctx context.Context, p model.Principal, affected []owned, op func(hdfs.Client) error) error {
	tenantErr := op(e.conn.As(p.Name))
	if tenantErr == nil || p.Admin {
		return tenantErr
	}

	admin := e.conn.As(e.adminUser)
	e.ensureTenantRoot(ctx, admin, p.Name)

	if err := op(admin); err != nil {
		e.log.Warn("escalated attempt failed",
			"user", p.Name,
			"tenant_error", tenantErr,
			"admin_error", err,
		)

		return tenantErr
	}

	for _, a := range affected {
		e.reown(ctx, admin, p.Name, a)
	}

	return nil
}

// ensureTenantRoot makes sure the tenant's home directory exists and belongs
// to the tenant. The re-own runs even when the directory already exists: a
// root left behind by an admin is exactly what made the tenant's attempt
// fail, and setting owner and mode again is harmless. Best effort; the retry
// that follows reports the real failure if this did not help.
func (e *Executor) ensureTenantRoot(ctx context.Context, admin hdfs.Client, username string) {
	root := e.resolver.TenantRoot(username)

	exists, err := admin.Exists(ctx, root)
	if err != nil {
		return
	}

	if !exists {
		if err := admin.Mkdir(ctx, root); err != nil {
			e.log.Warn("create tenant root", "path", root, "error", err)
			return
		}
	}
	e.reown(ctx, admin, username, owned{root, dirMode})
}

func (e *Executor) reown(ctx context.Context, admin hdfs.Client, username string, a owned) {
	if err := admin.SetOwner(ctx, a.path, username, username); err != nil {
		e.log.Warn("restore ownership", "path", a.path, "user", username, "error", err)
	}
	if a.mode == "" {
		return
	}
	if err := admin.SetPermission(ctx, a.path, a.mode); err != nil {
		e.log.Warn("restrict permissions", "path", a.path, "mode", a.mode, "error", err)
	}
}
