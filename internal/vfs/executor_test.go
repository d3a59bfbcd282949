package vfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hdfs-drive/internal/hdfs"
	"hdfs-drive/internal/model"
)

func newTestExecutor(t *testing.T) (*Executor, *hdfs.Memory) {
	t.Helper()

	store := hdfs.NewMemory("hdfs")
	resolver := NewResolver("/users")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewExecutor(store, resolver, "hdfs", log), store
}

func TestExecutorEscalatesForMissingTenantRoot(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t)
	ctx := context.Background()
	alice := model.Principal{Name: "alice"}

	// /users exists but belongs to the admin, so alice cannot create her
	// own home underneath it. The escalated retry must repair that.
	require.NoError(t, store.As("hdfs").Mkdir(ctx, "/users"))
	require.NoError(t, store.As("hdfs").SetPermission(ctx, "/users", "755"))

	require.NoError(t, exec.Mkdir(ctx, alice, "/users/alice/docs"))

	owner, ok := store.Owner("/users/alice")
	require.True(t, ok)
	require.Equal(t, "alice", owner)

	mode, ok := store.Mode("/users/alice")
	require.True(t, ok)
	require.Equal(t, "700", mode)

	owner, ok = store.Owner("/users/alice/docs")
	require.True(t, ok)
	require.Equal(t, "alice", owner)

	mode, ok = store.Mode("/users/alice/docs")
	require.True(t, ok)
	require.Equal(t, "700", mode)
}

func TestExecutorRepairsExistingAdminOwnedRoot(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t)
	ctx := context.Background()
	alice := model.Principal{Name: "alice"}

	// The home directory exists but was left behind by the admin; alice
	// cannot write into it. Escalation must hand the root back to her, not
	// just the path she touched.
	admin := store.As("hdfs")
	require.NoError(t, admin.Mkdir(ctx, "/users/alice"))
	require.NoError(t, admin.SetPermission(ctx, "/users/alice", "700"))

	require.NoError(t, exec.Mkdir(ctx, alice, "/users/alice/docs"))

	owner, ok := store.Owner("/users/alice")
	require.True(t, ok)
	require.Equal(t, "alice", owner)

	mode, ok := store.Mode("/users/alice")
	require.True(t, ok)
	require.Equal(t, "700", mode)

	owner, ok = store.Owner("/users/alice/docs")
	require.True(t, ok)
	require.Equal(t, "alice", owner)
}

func TestExecutorNoEscalationWhenTenantSucceeds(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t)
	ctx := context.Background()
	alice := model.Principal{Name: "alice"}

	require.NoError(t, store.As("hdfs").Mkdir(ctx, "/users/alice"))
	require.NoError(t, store.As("hdfs").SetOwner(ctx, "/users/alice", "alice", "alice"))

	require.NoError(t, exec.Save(ctx, alice, "/users/alice/note.txt", []byte("hi")))

	// A first-attempt success leaves the tenant's natural ownership alone:
	// no re-own pass runs, so the file keeps its creation mode.
	owner, ok := store.Owner("/users/alice/note.txt")
	require.True(t, ok)
	require.Equal(t, "alice", owner)

	mode, ok := store.Mode("/users/alice/note.txt")
	require.True(t, ok)
	require.Equal(t, "644", mode)
}

func TestExecutorSaveEscalatedRestrictsMode(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t)
	ctx := context.Background()
	alice := model.Principal{Name: "alice"}

	require.NoError(t, store.As("hdfs").Mkdir(ctx, "/users"))

	require.NoError(t, exec.Save(ctx, alice, "/users/alice/note.txt", []byte("hi")))

	owner, ok := store.Owner("/users/alice/note.txt")
	require.True(t, ok)
	require.Equal(t, "alice", owner)

	mode, ok := store.Mode("/users/alice/note.txt")
	require.True(t, ok)
	require.Equal(t, "600", mode)
}

// failConn mints clients that refuse every delete, tagged with the identity
// that issued it, so the test can tell whose error surfaced.
type failConn struct{}

func (failConn) As(user string) hdfs.Client { return failClient{user: user} }

type failClient struct {
	hdfs.Client
	user string
}

func (c failClient) Exists(context.Context, string) (bool, error) { return true, nil }

func (c failClient) SetOwner(context.Context, string, string, string) error { return nil }

func (c failClient) SetPermission(context.Context, string, string) error { return nil }

func (c failClient) Delete(_ context.Context, path string, _ bool) error {
	return fmt.Errorf("delete %q refused for %s", path, c.user)
}

func TestExecutorReturnsTenantErrorWhenAdminAlsoFails(t *testing.T) {
	t.Parallel()

	resolver := NewResolver("/users")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := NewExecutor(failConn{}, resolver, "hdfs", log)
	alice := model.Principal{Name: "alice"}

	err := exec.Delete(context.Background(), alice, "/users/alice/ghost.txt", false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "for alice")
	require.NotContains(t, err.Error(), "for hdfs")
}

func TestExecutorNeverEscalatesForAdmin(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t)
	ctx := context.Background()
	admin := model.Principal{Name: "hdfs", Admin: true}

	err := exec.Delete(ctx, admin, "/nope", false)
	require.Error(t, err)

	// Nothing was created as a side effect of an escalation path.
	_, ok := store.Owner("/users")
	require.False(t, ok)
}

func TestExecutorUploadReopensPayloadOnRetry(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t)
	ctx := context.Background()
	alice := model.Principal{Name: "alice"}

	require.NoError(t, store.As("hdfs").Mkdir(ctx, "/users"))

	opens := 0
	open := func() (io.ReadCloser, error) {
		opens++
		return io.NopCloser(strings.NewReader("payload")), nil
	}

	require.NoError(t, exec.Upload(ctx, alice, "/users/alice/up.bin", open))
	// Tenant attempt plus escalated retry each consumed a fresh reader.
	require.Equal(t, 2, opens)

	r, err := store.As("alice").Open(ctx, "/users/alice/up.bin")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestExecutorMoveKeepsModeRestoresOwner(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t)
	ctx := context.Background()
	alice := model.Principal{Name: "alice"}

	admin := store.As("hdfs")
	require.NoError(t, admin.Mkdir(ctx, "/users/alice"))

	// Both the directory and the file belong to the admin, so alice's
	// rename attempt fails and the admin retry takes over.
	w, err := admin.Create(ctx, "/users/alice/admin-made.txt", true)
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, admin.SetPermission(ctx, "/users/alice/admin-made.txt", "640"))

	require.NoError(t, exec.Move(ctx, alice, "/users/alice/admin-made.txt", "/users/alice/mine.txt"))

	owner, ok := store.Owner("/users/alice/mine.txt")
	require.True(t, ok)
	require.Equal(t, "alice", owner)

	mode, ok := store.Mode("/users/alice/mine.txt")
	require.True(t, ok)
	require.Equal(t, "640", mode)
}
