package defercall

import (
	"context"
)

type (
	// SyncFunc is a function executed to completion on a worker's loop
	// goroutine. It receives the context captured when the call was
	// created, i.e. the submitter's context, not the worker's.
	//
	// A SyncFunc blocks the worker's entire loop for its duration. This is
	// a documented contract, not a defect; callers needing isolation must
	// use separate workers, or [NewAsync].
	SyncFunc[T any] func(ctx context.Context) (T, error)

	// AsyncFunc is a function that initiates work and returns a [Future]
	// representing it. The initiation runs on the worker's loop goroutine;
	// the returned future is typically settled later, from a goroutine owned
	// by the function. The loop remains free to run other calls while the
	// returned future is pending.
	AsyncFunc[T any] func(ctx context.Context) *Future[T]

	// Deferred is the worker-facing view of a deferred call, implemented by
	// [Call]. External implementations are not supported.
	Deferred interface {
		// run executes the call on w's loop goroutine, at most once.
		run(w *Worker)
		// whenSettled registers a completion callback on the call's future.
		whenSettled(fn func())
		// abandon rejects the call's future with err when the worker exits
		// without ever running the call.
		abandon(err error)
	}

	// Call is an immutable record of a function, the context captured at
	// creation time, and a [Future] carrying the eventual outcome.
	//
	// A call is created by [New] or [NewAsync], submitted to a [Worker] (or
	// the global worker) exactly once, and executed at most once. The
	// outcome is observed through [Call.Result], [Call.Await], or
	// [Call.Future].
	Call[T any] struct {
		future  *Future[T]
		ctx     context.Context
		fn      SyncFunc[T]
		asyncFn AsyncFunc[T]
	}
)

var _ Deferred = (*Call[any])(nil)

// New creates a deferred synchronous call.
//
// The given context is the snapshot of the submitter's ambient state: it is
// captured now and passed to fn when the call eventually executes, so fn
// observes the submitter's context (values, deadline, cancellation) even
// though it runs on the worker's goroutine. A nil ctx defaults to
// [context.Background].
//
// New has no side effects beyond allocation; nothing executes until the
// call is submitted to a worker. Panics if fn is nil.
func New[T any](ctx context.Context, fn SyncFunc[T]) *Call[T] {
	if fn == nil {
		panic("defercall: New requires a non-nil function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Call[T]{
		future: NewFuture[T](),
		ctx:    ctx,
		fn:     fn,
	}
}

// NewAsync creates a deferred asynchronous call.
//
// Like [New], but fn returns a [Future] instead of a value: the worker runs
// fn on its loop goroutine to initiate the work, then resumes other calls
// while the returned future is pending. When that future settles, the
// call's own future is settled with the same outcome, from a continuation
// scheduled back onto the worker's loop. Panics if fn is nil.
func NewAsync[T any](ctx context.Context, fn AsyncFunc[T]) *Call[T] {
	if fn == nil {
		panic("defercall: NewAsync requires a non-nil function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Call[T]{
		future:  NewFuture[T](),
		ctx:     ctx,
		asyncFn: fn,
	}
}

// Future returns the call's result channel.
func (c *Call[T]) Future() *Future[T] {
	return c.future
}

// Result blocks the calling goroutine until the call settles, then returns
// the value or the original error. See [Future.Result].
func (c *Call[T]) Result() (T, error) {
	return c.future.Result()
}

// Await suspends until the call settles or ctx is done. See [Future.Await].
func (c *Call[T]) Await(ctx context.Context) (T, error) {
	return c.future.Await(ctx)
}

// Cancel cancels the call if execution has not begun. See [Future.Cancel].
func (c *Call[T]) Cancel() bool {
	return c.future.Cancel()
}

// whenSettled registers fn on the call's future. See [Future].
func (c *Call[T]) whenSettled(fn func()) {
	c.future.whenSettled(fn)
}

// abandon settles an accepted but never-executed call, so no waiter blocks
// forever on a worker that died before reaching it. A no-op once settled.
func (c *Call[T]) abandon(err error) {
	c.future.Reject(err)
}

// run executes the call and settles the future.
//
// All failures during execution are captured on the future; they never
// propagate to, or crash, the worker.
func (c *Call[T]) run(w *Worker) {
	// Do not execute if the future was cancelled first. This is the
	// at-most-once-execution guarantee under the cancellation race.
	if !c.future.setRunning() {
		w.logger().Debug().Str("worker", w.name).Log("skipping execution of cancelled call")
		return
	}

	if c.asyncFn != nil {
		c.runAsync(w)
		return
	}
	c.runSync(w)
}

// runSync executes a synchronous call to completion on the loop goroutine.
func (c *Call[T]) runSync(w *Worker) {
	completed := false
	defer func() {
		if r := recover(); r != nil {
			c.future.Reject(PanicError{Value: r})
			w.logger().Debug().Str("worker", w.name).Log("call panicked")
		} else if !completed {
			// Reached without panic or normal return: runtime.Goexit.
			c.future.Reject(ErrGoexit)
		}
	}()

	value, err := c.fn(c.ctx)
	completed = true

	if err != nil {
		c.future.Reject(err)
		w.logger().Debug().Str("worker", w.name).Err(err).Log("call failed")
	} else {
		c.future.Resolve(value)
	}
}

// runAsync initiates an asynchronous call and arranges for the call's
// future to be settled, on the loop goroutine, once the inner future
// settles.
func (c *Call[T]) runAsync(w *Worker) {
	var inner *Future[T]
	initiated := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				c.future.Reject(PanicError{Value: r})
				w.logger().Debug().Str("worker", w.name).Log("async call panicked during initiation")
			}
		}()
		inner = c.asyncFn(c.ctx)
		return true
	}()
	if !initiated {
		return
	}
	if inner == nil {
		c.future.Reject(ErrNilFuture)
		return
	}

	inner.whenSettled(func() {
		settle := func() {
			if value, err := inner.outcome(); err != nil {
				c.future.Reject(err)
			} else {
				c.future.Resolve(value)
			}
		}
		// Resolution goes through the loop so continuations retain the
		// worker's FIFO ready-queue ordering. Fallback to direct
		// resolution if the worker is already gone, or dies with the
		// continuation still queued, so the call always settles.
		if err := w.schedule(task{run: settle, abandon: func(error) { settle() }}); err != nil {
			settle()
		}
	})
}
