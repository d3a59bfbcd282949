// Package trash keeps the soft-delete ledger and runs the background purge
// that makes retention real.
package trash

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"hdfs-drive/internal/model"
)

// Entry is one soft-deleted path. Timestamps are epoch milliseconds; an
// ExpireAt of zero means no explicit deadline was set at delete time and the
// default retention applies, counted from DeletedAt.
type Entry struct {
	Path        string `json:"path"`
	IsDirectory bool   `json:"isDirectory"`
	Name        string `json:"name"`
	DeletedAt   int64  `json:"deletedAt"`
	ExpireAt    int64  `json:"expireAt"`
}

// EffectiveExpire resolves the lazy zero deadline against the retention in
// force when the question is asked, not when the entry was written.
func (e Entry) EffectiveExpire(retention time.Duration) time.Time {
	if e.ExpireAt != 0 {
		return time.UnixMilli(e.ExpireAt)
	}

	return time.UnixMilli(e.DeletedAt).Add(retention)
}

// Ledger is the persistent record of soft-deleted paths. Every mutation is
// snapshotted to disk before it is acknowledged.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
	now     func() time.Time
}

// NewLedger loads the snapshot at path. A missing file is an empty ledger; a
// file that exists but cannot be parsed is a corruption error, never silently
// reset.
func NewLedger(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		entries: map[string]Entry{},
		now:     time.Now,
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trash index: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse trash index %q: %w: %v", path, model.ErrLedgerCorrupt, err)
	}

	for _, e := range entries {
		l.entries[e.Path] = e
	}

	return l, nil
}

// Add records a soft deletion. Adding a path that is already in the ledger
// is a no-op: the first deletion keeps its timestamps, so repeated deletes
// never restart the retention clock.
func (l *Ledger) Add(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[e.Path]; ok {
		return nil
	}
	l.entries[e.Path] = e

	return l.persist()
}

// Get returns the entry for a storage path.
func (l *Ledger) Get(path string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[path]

	return e, ok
}

// List returns a snapshot of all entries, sorted by deletion time ascending.
func (l *Ledger) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt < out[j].DeletedAt })

	return out
}

// Remove drops a path from the ledger, reporting whether it was present.
func (l *Ledger) Remove(path string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[path]; !ok {
		return false, nil
	}
	delete(l.entries, path)

	return true, l.persist()
}

// PurgeExpired deletes the backing storage for every entry whose effective
// deadline has passed and removes those entries from the ledger. A storage
// delete that fails still retires the entry; the path is already doomed and
// keeping the record would retry it forever.
//
// The whole pass runs inside one critical section, storage deletes included:
// a restore racing the purge either completes before any object is destroyed
// or finds the entry gone. deleteFn must not call back into the ledger.
func (l *Ledger) PurgeExpired(ctx context.Context, retention time.Duration, deleteFn func(ctx context.Context, path string, recursive bool) error) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	purged := make([]string, 0)
	var firstDeleteErr error

	for _, e := range l.entries {
		if e.EffectiveExpire(retention).After(now) {
			continue
		}
		if err := deleteFn(ctx, e.Path, e.IsDirectory); err != nil && firstDeleteErr == nil {
			firstDeleteErr = fmt.Errorf("purge %q: %w", e.Path, err)
		}
		purged = append(purged, e.Path)
	}

	if len(purged) > 0 {
		for _, p := range purged {
			delete(l.entries, p)
		}
		if err := l.persist(); err != nil {
			return purged, err
		}
	}

	return purged, firstDeleteErr
}

// persist writes the snapshot next to its final name and renames it into
// place. Callers hold l.mu.
func (l *Ledger) persist() error {
	entries := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DeletedAt < entries[j].DeletedAt })

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trash index: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create trash index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".trash-*.json")
	if err != nil {
		return fmt.Errorf("write trash index: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write trash index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write trash index: %w", err)
	}

	if err := os.Rename(tmp.Name(), l.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace trash index: %w", err)
	}

	return nil
}
