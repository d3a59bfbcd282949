package trash

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hdfs-drive/internal/model"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	l, err := NewLedger(filepath.Join(t.TempDir(), "trash.json"))
	require.NoError(t, err)

	return l
}

func TestLedgerAddIsIdempotentPerPath(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)

	require.NoError(t, l.Add(Entry{Path: "/users/alice/a.txt", Name: "a.txt", DeletedAt: 1000, ExpireAt: 5000}))
	// A second deletion of the same path changes nothing: the retention
	// clock keeps counting from the first one.
	require.NoError(t, l.Add(Entry{Path: "/users/alice/a.txt", Name: "a.txt", DeletedAt: 9000}))

	entries := l.List()
	require.Len(t, entries, 1)
	require.Equal(t, int64(1000), entries[0].DeletedAt)
	require.Equal(t, int64(5000), entries[0].ExpireAt)
}

func TestLedgerSurvivesReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trash.json")

	l, err := NewLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Add(Entry{Path: "/users/alice/a.txt", Name: "a.txt", DeletedAt: 1000, ExpireAt: 0}))
	require.NoError(t, l.Add(Entry{Path: "/users/bob/b", Name: "b", IsDirectory: true, DeletedAt: 2000, ExpireAt: 9000}))

	reloaded, err := NewLedger(path)
	require.NoError(t, err)

	entries := reloaded.List()
	require.Len(t, entries, 2)
	require.Equal(t, "/users/alice/a.txt", entries[0].Path)
	require.Equal(t, int64(0), entries[0].ExpireAt)
	require.True(t, entries[1].IsDirectory)
	require.Equal(t, int64(9000), entries[1].ExpireAt)
}

func TestLedgerCorruptSnapshotIsAnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trash.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewLedger(path)
	require.ErrorIs(t, err, model.ErrLedgerCorrupt)

	// The corrupt snapshot must survive for manual inspection.
	raw, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	require.Equal(t, "{not json", string(raw))
}

func TestLedgerRemove(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	require.NoError(t, l.Add(Entry{Path: "/users/alice/a.txt", DeletedAt: 1000}))

	ok, err := l.Remove("/users/alice/a.txt")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Remove("/users/alice/a.txt")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEffectiveExpire(t *testing.T) {
	t.Parallel()

	retention := 30 * 24 * time.Hour
	deletedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	lazy := Entry{DeletedAt: deletedAt.UnixMilli(), ExpireAt: 0}
	require.Equal(t, deletedAt.Add(retention), lazy.EffectiveExpire(retention))

	// A changed retention applies to existing lazy entries.
	require.Equal(t, deletedAt.Add(time.Hour), lazy.EffectiveExpire(time.Hour))

	explicit := Entry{DeletedAt: deletedAt.UnixMilli(), ExpireAt: deletedAt.Add(time.Minute).UnixMilli()}
	require.Equal(t, deletedAt.Add(time.Minute), explicit.EffectiveExpire(retention))
}

func TestPurgeExpiredBoundary(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	retention := time.Hour
	deletedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	deadline := deletedAt.Add(retention)

	require.NoError(t, l.Add(Entry{Path: "/users/alice/old.txt", DeletedAt: deletedAt.UnixMilli()}))

	deleted := make([]string, 0)
	deleteFn := func(_ context.Context, path string, _ bool) error {
		deleted = append(deleted, path)
		return nil
	}

	// One millisecond before the deadline nothing is purged.
	l.now = func() time.Time { return deadline.Add(-time.Millisecond) }
	purged, err := l.PurgeExpired(context.Background(), retention, deleteFn)
	require.NoError(t, err)
	require.Empty(t, purged)
	require.Empty(t, deleted)

	// At the deadline the entry goes.
	l.now = func() time.Time { return deadline }
	purged, err = l.PurgeExpired(context.Background(), retention, deleteFn)
	require.NoError(t, err)
	require.Equal(t, []string{"/users/alice/old.txt"}, purged)
	require.Equal(t, []string{"/users/alice/old.txt"}, deleted)
	require.Empty(t, l.List())
}

func TestPurgeExpiredRetiresEntryWhenDeleteFails(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	l.now = func() time.Time { return time.UnixMilli(10_000) }

	require.NoError(t, l.Add(Entry{Path: "/users/alice/gone.txt", DeletedAt: 1, ExpireAt: 2}))

	deleteErr := errors.New("datanode unreachable")
	purged, err := l.PurgeExpired(context.Background(), time.Hour, func(context.Context, string, bool) error {
		return deleteErr
	})

	require.ErrorIs(t, err, deleteErr)
	require.Equal(t, []string{"/users/alice/gone.txt"}, purged)
	// The record is retired regardless, never retried forever.
	require.Empty(t, l.List())
}

func TestPurgeExpiredBlocksRestoreUntilDone(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	l.now = func() time.Time { return time.UnixMilli(10_000) }

	require.NoError(t, l.Add(Entry{Path: "/users/alice/x", DeletedAt: 1, ExpireAt: 2}))

	deleteStarted := make(chan struct{})
	releaseDelete := make(chan struct{})
	purgeDone := make(chan error, 1)

	go func() {
		_, err := l.PurgeExpired(context.Background(), time.Hour, func(context.Context, string, bool) error {
			close(deleteStarted)
			<-releaseDelete
			return nil
		})
		purgeDone <- err
	}()

	<-deleteStarted

	// A restore racing the purge must not report success while the object
	// is being destroyed; it waits for the purge and then finds nothing.
	removed := make(chan bool, 1)
	go func() {
		ok, _ := l.Remove("/users/alice/x")
		removed <- ok
	}()

	select {
	case <-removed:
		t.Fatal("restore completed while the purge was still destroying the object")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseDelete)
	require.NoError(t, <-purgeDone)
	require.False(t, <-removed)
	require.Empty(t, l.List())
}

func TestPurgeExpiredPassesRecursiveForDirectories(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	l.now = func() time.Time { return time.UnixMilli(10_000) }

	require.NoError(t, l.Add(Entry{Path: "/users/alice/dir", IsDirectory: true, DeletedAt: 1, ExpireAt: 2}))
	require.NoError(t, l.Add(Entry{Path: "/users/alice/file", DeletedAt: 1, ExpireAt: 2}))

	recursives := map[string]bool{}
	_, err := l.PurgeExpired(context.Background(), time.Hour, func(_ context.Context, path string, recursive bool) error {
		recursives[path] = recursive
		return nil
	})
	require.NoError(t, err)
	require.True(t, recursives["/users/alice/dir"])
	require.False(t, recursives["/users/alice/file"])
}
