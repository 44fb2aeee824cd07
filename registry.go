package defercall

import (
	"sync"
)

// globalWorker caches the process-wide worker handle. It is purely a cached
// handle with a liveness check, not an owner of call data.
var globalWorker struct {
	mu     sync.Mutex
	worker *Worker
}

// GlobalWorker returns the process-wide worker, creating and starting a new
// daemon worker on first call or if the cached worker's loop goroutine is no
// longer alive. Safe for concurrent use; the mutex around the liveness check
// and construction guarantees at most one live instance.
//
// The global worker is a daemon: it is not stopped by [ShutdownAll], only by
// process exit (or by dying, in which case the next call replaces it).
func GlobalWorker() (*Worker, error) {
	globalWorker.mu.Lock()
	defer globalWorker.mu.Unlock()

	if w := globalWorker.worker; w != nil && w.Alive() {
		return w, nil
	}

	w, err := NewWorker(WithName("global-worker"), WithDaemon(true))
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}

	globalWorker.worker = w
	return w, nil
}

// exitHooks tracks live non-daemon workers for ShutdownAll.
var exitHooks struct {
	mu      sync.Mutex
	workers map[*Worker]struct{}
}

// registerExitHook records a non-daemon worker at construction time.
func registerExitHook(w *Worker) {
	exitHooks.mu.Lock()
	defer exitHooks.mu.Unlock()
	if exitHooks.workers == nil {
		exitHooks.workers = make(map[*Worker]struct{})
	}
	exitHooks.workers[w] = struct{}{}
}

// deregisterExitHook removes a worker that was shut down explicitly.
func deregisterExitHook(w *Worker) {
	exitHooks.mu.Lock()
	defer exitHooks.mu.Unlock()
	delete(exitHooks.workers, w)
}

// ShutdownAll signals shutdown to every registered non-daemon worker.
//
// Go has no interpreter-exit hook, so the registration non-daemon workers
// perform at construction surfaces here instead: call ShutdownAll from the
// host's own exit path (e.g. deferred in main). Shutdown is cooperative;
// pair with [Worker.Join] where a bounded wait is needed.
func ShutdownAll() {
	exitHooks.mu.Lock()
	workers := make([]*Worker, 0, len(exitHooks.workers))
	for w := range exitHooks.workers {
		workers = append(workers, w)
	}
	exitHooks.mu.Unlock()

	// Shutdown deregisters each worker; the snapshot avoids holding the
	// registry lock across that.
	for _, w := range workers {
		w.Shutdown()
	}
}
