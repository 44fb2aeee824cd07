package defercall

import (
	"context"
	"sync"
)

// CallState represents the lifecycle state of a [Future].
// A future starts in [Pending] and transitions exactly once to one of the
// terminal states [Fulfilled], [Failed], or [Cancelled]. [Running] is the
// intermediate state entered when a worker begins executing the owning call.
// State transitions are irreversible.
type CallState int32

const (
	// Pending indicates execution has not begun and no outcome exists.
	Pending CallState = iota

	// Running indicates a worker has begun executing the call.
	// Cancellation is no longer possible.
	Running

	// Fulfilled indicates the call completed successfully with a value.
	Fulfilled

	// Failed indicates the call failed with an error.
	Failed

	// Cancelled indicates the future was cancelled before execution began.
	// The wrapped function was never invoked.
	Cancelled
)

// String returns a human-readable representation of the state.
func (s CallState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Fulfilled:
		return "Fulfilled"
	case Failed:
		return "Failed"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// terminal reports whether the state is one of the three terminal outcomes.
func (s CallState) terminal() bool {
	return s == Fulfilled || s == Failed || s == Cancelled
}

// Future is a single-assignment, thread-safe result channel.
//
// A future settles at most once, with a value ([Future.Resolve]), an error
// ([Future.Reject]), or cancellation ([Future.Cancel]). Settling an
// already-settled future has no effect. Any number of goroutines may
// observe the outcome concurrently, via [Future.Result], [Future.Await],
// or [Future.Done]; repeated reads return the identical outcome.
//
// Futures are created implicitly by [New] and [NewAsync], or explicitly by
// [NewFuture], e.g. as the return value of an [AsyncFunc].
type Future[T any] struct {
	value     T
	err       error
	callbacks []func()
	done      chan struct{}
	state     CallState
	mu        sync.Mutex
}

// NewFuture creates a new pending future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// State returns the current [CallState].
func (f *Future[T]) State() CallState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done returns a channel that is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Resolve settles the future as [Fulfilled] with the given value, and
// returns true. Returns false without effect if the future already settled.
// Safe to call from any goroutine.
func (f *Future[T]) Resolve(value T) bool {
	return f.settle(Fulfilled, value, nil)
}

// Reject settles the future as [Failed] with the given error, and returns
// true. Returns false without effect if the future already settled.
// Safe to call from any goroutine.
//
// The error is stored verbatim; it is returned as-is to every waiter.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.settle(Failed, zero, err)
}

// Cancel settles the future as [Cancelled], preventing the owning call from
// ever executing, and returns true. Returns false without effect if
// execution has already begun ([Running]) or the future already settled.
//
// Waiters observe [ErrCancelled].
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}
	f.state = Cancelled
	f.err = ErrCancelled
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return true
}

// Result blocks until the future settles, then returns the outcome.
//
// For a fulfilled future, returns the value. For a failed future, returns
// the original error exactly as produced by the call. For a cancelled
// future, returns [ErrCancelled].
//
// Must not be called from the worker's own loop goroutine while the owning
// call is in flight there; doing so deadlocks. Use [Future.Await] with a
// deadline if unsure.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.outcome()
}

// Await suspends until the future settles or ctx is done, whichever comes
// first. On ctx expiry the future is left untouched and ctx.Err() is
// returned.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.outcome()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// setRunning attempts the Pending → Running transition, atomically checking
// for prior cancellation. Returns false if the future was cancelled (or
// otherwise settled) first, in which case the call must not execute.
func (f *Future[T]) setRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Pending {
		return false
	}
	f.state = Running
	return true
}

// settle performs the single terminal transition, notifying callbacks.
// Valid from Pending or Running.
func (f *Future[T]) settle(state CallState, value T, err error) bool {
	f.mu.Lock()
	if f.state.terminal() {
		f.mu.Unlock()
		return false
	}
	f.state = state
	f.value = value
	f.err = err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	// Callbacks run on the settling goroutine, outside the lock.
	for _, fn := range callbacks {
		fn()
	}
	return true
}

// outcome returns the settled value and error. Only valid once done is
// closed; the fields are immutable from that point.
func (f *Future[T]) outcome() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// whenSettled registers fn to run when the future settles, on whichever
// goroutine performs the settling transition. If the future has already
// settled, fn runs immediately on the calling goroutine.
func (f *Future[T]) whenSettled(fn func()) {
	f.mu.Lock()
	if f.state.terminal() {
		f.mu.Unlock()
		fn()
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}
