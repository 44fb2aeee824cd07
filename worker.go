package defercall

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// workerTestHooks provides injection points for deterministic testing of
// bootstrap failure paths.
type workerTestHooks struct {
	// PreReady runs on the loop goroutine before readiness is signaled.
	// A non-nil error fails the bootstrap.
	PreReady func() error
}

// task is one unit of queued loop work. abandon, if non-nil, settles the
// task's observers when the loop exits without running it.
type task struct {
	run     func()
	abandon func(err error)
}

// Worker owns one dedicated execution thread, driving a cooperative loop
// that executes deferred calls submitted from any goroutine.
//
// A worker is created with [NewWorker], started explicitly with
// [Worker.Start] or lazily by the first [Worker.Submit], and stopped with
// [Worker.Shutdown]. The loop goroutine is locked to an OS thread for its
// lifetime, so calls observing thread-local state (cgo, syscalls) always
// run on the same thread.
//
// Calls submitted to the same worker execute in submission order.
// Continuations of asynchronous calls that become ready interleave in FIFO
// order on the same loop. No ordering exists across distinct workers.
type Worker struct {
	// Prevent copying
	_ [0]func()

	log       *logiface.Logger[logiface.Event]
	testHooks *workerTestHooks

	// ready is resolved by the loop goroutine once the loop is live, or
	// rejected if bootstrap failed.
	ready *Future[struct{}]

	// wake coalesces cross-goroutine wake-ups (capacity 1).
	wake chan struct{}
	// shutdownCh is the level-triggered shutdown signal.
	shutdownCh chan struct{}
	// done is closed when the loop goroutine exits.
	done chan struct{}

	queue []task
	buf   []task

	name    string
	daemon  bool
	runOnce bool

	state        workerState
	submitted    atomic.Uint64
	shutdownOnce sync.Once

	mu          sync.Mutex
	queueClosed bool
}

var workerIDCounter atomic.Uint64

// NewWorker creates a worker without starting its loop goroutine.
//
// A non-daemon worker (the default) is registered for [ShutdownAll] at
// construction, and deregistered if it is shut down early.
func NewWorker(opts ...WorkerOption) (*Worker, error) {
	cfg, err := resolveWorkerOptions(opts)
	if err != nil {
		return nil, err
	}

	name := cfg.name
	if name == "" {
		name = fmt.Sprintf("worker-%d", workerIDCounter.Add(1))
	}

	w := &Worker{
		name:       name,
		daemon:     cfg.daemon,
		runOnce:    cfg.runOnce,
		log:        cfg.logger,
		ready:      NewFuture[struct{}](),
		wake:       make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}

	if !w.daemon {
		registerExitHook(w)
	}

	return w, nil
}

// Name returns the worker's name.
func (w *Worker) Name() string { return w.name }

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState { return w.state.Load() }

// Alive returns true while the loop goroutine is running (or starting).
func (w *Worker) Alive() bool { return w.state.Alive() }

// SubmittedCount returns the number of accepted submissions.
func (w *Worker) SubmittedCount() uint64 { return w.submitted.Load() }

// Start spawns the loop goroutine and blocks until it is ready to accept
// submissions.
//
// Returns [ErrWorkerStarted] if the worker was already started, or a
// [StartupError] wrapping the cause if the loop goroutine failed during
// bootstrap (in which case the worker is terminated).
func (w *Worker) Start() error {
	if !w.state.TryTransition(StateConstructed, StateStarting) {
		return ErrWorkerStarted
	}

	go w.entrypoint()

	if _, err := w.ready.Result(); err != nil {
		return &StartupError{Cause: err}
	}
	return nil
}

// Submit hands the call off to the worker's loop for execution.
//
// Submit starts the worker if it has never been started. It fails with
// [ErrRunOnceExhausted] if the worker is run-once and already accepted a
// call, with [ErrWorkerShutdown] if shutdown has been signaled, or with a
// [StartupError] if the lazy start failed. On success the call executes on
// the loop goroutine, in submission order; Submit itself never blocks on
// execution.
//
// A run-once worker shuts itself down as soon as its single call reaches
// any terminal state. A call accepted during a bootstrap that subsequently
// fails is rejected with [ErrWorkerShutdown] rather than left pending.
func (w *Worker) Submit(call Deferred) error {
	if w.runOnce && w.submitted.Load() != 0 {
		return ErrRunOnceExhausted
	}

	// Lazy start on first use. A concurrent Submit may lose the transition
	// race; the queue accepts work as soon as the worker exists, so the
	// loser proceeds regardless.
	if w.state.Load() == StateConstructed {
		if err := w.Start(); err != nil && !errors.Is(err, ErrWorkerStarted) {
			return err
		}
	}

	switch w.state.Load() {
	case StateShuttingDown, StateTerminated:
		return ErrWorkerShutdown
	}

	// Commit the run-once slot only after the checks above; a rejected
	// Submit must not consume it or count as a submission.
	if w.runOnce && !w.submitted.CompareAndSwap(0, 1) {
		return ErrRunOnceExhausted
	}

	// The queue push is the only sanctioned crossing from an arbitrary
	// goroutine into the loop goroutine.
	if err := w.schedule(task{
		run:     func() { call.run(w) },
		abandon: call.abandon,
	}); err != nil {
		if w.runOnce {
			w.submitted.Store(0)
		}
		return err
	}

	if !w.runOnce {
		w.submitted.Add(1)
	}
	w.logger().Debug().Str("worker", w.name).Uint64("submitted", w.submitted.Load()).Log("call submitted")

	if w.runOnce {
		call.whenSettled(func() { w.Shutdown() })
	}

	return nil
}

// Shutdown signals the worker to stop. Idempotent; a no-op if the worker
// was never started.
//
// Shutdown is cooperative and best-effort: it does not interrupt an
// in-flight call, and it returns without waiting for the loop goroutine to
// exit. Work already queued when the signal is observed still runs. Use
// [Worker.Join] to wait for termination.
func (w *Worker) Shutdown() {
	// A never-started worker has nothing to stop, and remains startable.
	if w.state.Load() == StateConstructed {
		return
	}

	w.shutdownOnce.Do(func() {
		w.state.TransitionAny([]WorkerState{StateStarting, StateReady}, StateShuttingDown)
		close(w.shutdownCh)
		if !w.daemon {
			deregisterExitHook(w)
		}
		w.logger().Debug().Str("worker", w.name).Log("worker shutdown signaled")
	})
}

// Join blocks until the loop goroutine has exited, or ctx is done.
// Returns immediately if the worker was never started.
func (w *Worker) Join(ctx context.Context) error {
	if w.state.Load() == StateConstructed {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schedule enqueues t for execution on the loop goroutine and wakes the
// loop. Safe to call from any goroutine. Fails with [ErrWorkerShutdown]
// once the loop has stopped accepting work.
func (w *Worker) schedule(t task) error {
	w.mu.Lock()
	if w.queueClosed {
		w.mu.Unlock()
		return ErrWorkerShutdown
	}
	w.queue = append(w.queue, t)
	w.mu.Unlock()

	// Coalesced wake-up; a pending token means the loop will drain anyway.
	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// entrypoint is the loop goroutine's entry function.
func (w *Worker) entrypoint() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		r := recover()
		w.state.Store(StateTerminated)
		cause := error(ErrWorkerShutdown)
		if r != nil {
			// A failure in the worker's own machinery, never a call's:
			// calls capture their failures on their futures. Terminate;
			// the crash is observable via Alive. Unblock Start before
			// anything else, the logger must never wedge it.
			cause = PanicError{Value: r}
			w.ready.Reject(cause)
		}
		w.discardQueue(cause)
		close(w.done)
		if r != nil {
			w.logger().Err().Str("worker", w.name).Any("panic", r).Log("worker crashed")
		}
	}()

	w.runUntilShutdown()
}

// runUntilShutdown publishes readiness and drives the loop until the
// shutdown signal is observed.
//
// While "suspended" waiting for shutdown, the loop remains fully able to
// run scheduled work; only the wait itself parks.
func (w *Worker) runUntilShutdown() {
	if h := w.testHooks; h != nil && h.PreReady != nil {
		if err := h.PreReady(); err != nil {
			w.ready.Reject(err)
			return
		}
	}

	// Shutdown may already have won the Starting → ShuttingDown race; the
	// select below observes the closed signal either way.
	w.state.TryTransition(StateStarting, StateReady)
	w.ready.Resolve(struct{}{})
	w.logger().Debug().Str("worker", w.name).Log("worker ready")

	for {
		select {
		case <-w.wake:
			w.drainQueue()
		case <-w.shutdownCh:
			w.finalDrain()
			return
		}
	}
}

// drainQueue executes queued work in FIFO order, swapping the queue with a
// reusable buffer to keep the lock out of execution.
func (w *Worker) drainQueue() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		tasks := w.queue
		w.queue = w.buf[:0]
		w.buf = tasks[:0]
		w.mu.Unlock()

		for i := range tasks {
			w.safeRun(tasks[i].run)
			tasks[i] = task{}
		}
	}
}

// finalDrain closes the queue to new work and runs whatever was accepted
// before the close. After this, schedule fails with ErrWorkerShutdown, so
// no accepted call can be lost.
func (w *Worker) finalDrain() {
	w.mu.Lock()
	w.queueClosed = true
	tasks := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, t := range tasks {
		w.safeRun(t.run)
	}
}

// discardQueue closes the queue and abandons whatever it held, rejecting
// each task's observers with cause. Used on abnormal loop exit; at that
// point nothing may execute on the (gone) loop, but an accepted call must
// still settle rather than strand its waiters.
func (w *Worker) discardQueue(cause error) {
	w.mu.Lock()
	w.queueClosed = true
	tasks := w.queue
	w.queue = nil
	w.mu.Unlock()

	for _, t := range tasks {
		if t.abandon != nil {
			t.abandon(cause)
		}
	}
}

// safeRun executes a scheduled task, containing panics so the loop
// machinery survives. Calls recover their own panics in run; this backstop
// covers internally scheduled continuations.
func (w *Worker) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger().Err().Str("worker", w.name).Any("panic", r).Log("scheduled task panicked")
		}
	}()
	fn()
}

// logger resolves the worker's logger, falling back to the package default.
// May return nil; logiface treats a nil logger as a no-op.
func (w *Worker) logger() *logiface.Logger[logiface.Event] {
	if w.log != nil {
		return w.log
	}
	return getGlobalLogger()
}
