package trash

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsInitialAndPeriodicPasses(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	require.NoError(t, l.Add(Entry{Path: "/users/alice/x", DeletedAt: 1, ExpireAt: 2}))

	var calls atomic.Int32
	deleteFn := func(context.Context, string, bool) error {
		calls.Add(1)
		return nil
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(l, time.Hour, 5*time.Millisecond, 10*time.Millisecond, deleteFn, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}

	require.Empty(t, l.List())
}

func TestSchedulerKeepsGoingAfterFailedPass(t *testing.T) {
	t.Parallel()

	l := newTestLedger(t)
	require.NoError(t, l.Add(Entry{Path: "/users/alice/x", DeletedAt: 1, ExpireAt: 2}))
	require.NoError(t, l.Add(Entry{Path: "/users/alice/y", DeletedAt: 1, ExpireAt: 2}))

	var calls atomic.Int32
	deleteFn := func(context.Context, string, bool) error {
		calls.Add(1)
		return errors.New("storage down")
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(l, time.Hour, time.Millisecond, 5*time.Millisecond, deleteFn, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Both entries get a delete attempt even though every attempt fails.
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
}
