package defercall

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShutdownIdempotent(t *testing.T) {
	w, err := NewWorker(WithDaemon(true))
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Second call is a no-op, no error, no panic.
	w.Shutdown()
	w.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Join(ctx); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if state := w.State(); state != StateTerminated {
		t.Fatalf("State() = %v, expected Terminated", state)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	// Shutdown on a never-started worker is a no-op; the worker remains
	// usable afterwards.
	w := newTestWorker(t)

	w.Shutdown()
	if state := w.State(); state != StateConstructed {
		t.Fatalf("State() = %v after no-op shutdown, expected Constructed", state)
	}

	call := New(context.Background(), func(ctx context.Context) (int, error) {
		return 3, nil
	})
	if err := w.Submit(call); err != nil {
		t.Fatalf("Submit after no-op shutdown failed: %v", err)
	}
	if v, err := call.Result(); err != nil || v != 3 {
		t.Fatalf("Result() = (%d, %v), expected (3, nil)", v, err)
	}
}

func TestShutdownDrainsAcceptedCalls(t *testing.T) {
	// Calls accepted before the shutdown signal is observed still run;
	// shutdown is cooperative, not destructive.
	w, err := NewWorker(WithDaemon(true))
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Park the loop so submissions stack up behind the blocker.
	started := make(chan struct{})
	release := make(chan struct{})
	blocker := New(context.Background(), func(ctx context.Context) (struct{}, error) {
		close(started)
		<-release
		return struct{}{}, nil
	})
	if err := w.Submit(blocker); err != nil {
		t.Fatalf("Submit blocker failed: %v", err)
	}
	<-started

	queued := New(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err := w.Submit(queued); err != nil {
		t.Fatalf("Submit queued failed: %v", err)
	}

	w.Shutdown()
	close(release)

	v, err := queued.Result()
	if err != nil {
		t.Fatalf("queued call lost during shutdown: %v", err)
	}
	if v != 42 {
		t.Fatalf("queued Result() = %d, expected 42", v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Join(ctx); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
}

func TestJoinContextExpiry(t *testing.T) {
	w := newTestWorker(t)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Worker still running; a bounded Join gives up.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Join(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Join on live worker = %v, expected deadline exceeded", err)
	}
}

func TestScheduleAfterTermination(t *testing.T) {
	w, err := NewWorker(WithDaemon(true))
	if err != nil {
		t.Fatalf("NewWorker failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Join(ctx); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	// The queue is closed; no accepted call can be lost after this point.
	if err := w.schedule(task{run: func() {}}); !errors.Is(err, ErrWorkerShutdown) {
		t.Fatalf("schedule after termination = %v, expected ErrWorkerShutdown", err)
	}
}
