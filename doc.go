// Package defercall defers function calls onto dedicated worker goroutines,
// each driving its own cooperative loop, with results delivered through
// single-assignment futures.
//
// # Architecture
//
// A [Call] captures a function, the submitter's context, and a [Future] for
// the outcome. A [Worker] owns one loop goroutine (locked to an OS thread)
// and accepts calls from any goroutine via [Worker.Submit], the only
// sanctioned crossing into the loop. [GlobalWorker] provides a process-wide
// lazily-created daemon worker with liveness detection, for callers that do
// not want to manage worker lifetime themselves.
//
// # Execution Model
//
// Synchronous calls ([New]) run to completion on the loop; a long-running
// synchronous call blocks that worker's entire loop for its duration, which
// is a documented contract, not a defect. Asynchronous calls ([NewAsync])
// initiate on the loop and suspend by returning a pending [Future]; the
// loop remains free to run other calls until it settles. Calls submitted to
// the same worker run in submission order; ready continuations interleave
// FIFO on the same loop.
//
// # Thread Safety
//
//   - [Worker.Submit], [Worker.Shutdown], and [Worker.Join] are safe to
//     call from any goroutine
//   - [Future] is a multiple-writer-protected, multiple-reader state
//     machine: it settles exactly once and any number of goroutines may
//     await it
//   - [Future.Cancel] before execution guarantees the wrapped function is
//     never invoked; cancellation of an in-flight call is unsupported
//
// # Usage
//
//	worker, err := defercall.NewWorker()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer worker.Shutdown()
//
//	call := defercall.New(ctx, func(ctx context.Context) (int, error) {
//		return 1 + 1, nil
//	})
//	if err := worker.Submit(call); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := call.Result() // blocks until the call settles
//
// # Error Types
//
//   - [ErrRunOnceExhausted], [ErrWorkerShutdown], [ErrWorkerStarted]:
//     submission and lifecycle contract violations
//   - [StartupError]: the loop goroutine failed during bootstrap; surfaced
//     to [Worker.Start], directly or through a lazy-starting Submit
//   - [PanicError]: wraps a panic recovered from an executed call,
//     delivered on the call's future; the worker itself survives
//   - [ErrCancelled]: observed by waiters of a cancelled future
//
// Failures inside an executed function never crash the worker; they are
// captured verbatim on the call's future and returned to every waiter.
// There are no retries and no timeouts at this layer; callers apply their
// own policy, e.g. via [Future.Await] with a deadline context.
package defercall
