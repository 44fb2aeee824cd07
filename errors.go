package defercall

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrWorkerShutdown is returned by [Worker.Submit] after shutdown has
	// been signaled.
	ErrWorkerShutdown = errors.New("defercall: worker is shut down")

	// ErrRunOnceExhausted is returned by [Worker.Submit] when a worker
	// configured with [WithRunOnce] has already accepted a call.
	ErrRunOnceExhausted = errors.New("defercall: worker configured to only run once; a call has already been submitted")

	// ErrWorkerStarted is returned by [Worker.Start] if the worker was
	// already started.
	ErrWorkerStarted = errors.New("defercall: worker already started")

	// ErrCancelled is the terminal error of a [Future] that was cancelled
	// before execution began.
	ErrCancelled = errors.New("defercall: call cancelled")

	// ErrNilFuture is the terminal error of an asynchronous call whose
	// function returned a nil future.
	ErrNilFuture = errors.New("defercall: async call returned nil future")

	// ErrGoexit is the terminal error of a call whose function exited via
	// runtime.Goexit rather than returning.
	ErrGoexit = errors.New("defercall: call exited via runtime.Goexit")
)

// PanicError wraps a panic value recovered from an executed call.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("defercall: call panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] for error matching
// through the cause chain.
//
// If the panic Value is not an error (e.g. a string or other type),
// returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StartupError indicates the worker's loop goroutine failed during
// bootstrap, before it ever became ready. It is surfaced to the caller of
// [Worker.Start], directly or indirectly through [Worker.Submit].
type StartupError struct {
	Cause error
}

// Error implements the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("defercall: worker startup failed: %v", e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *StartupError) Unwrap() error {
	return e.Cause
}
