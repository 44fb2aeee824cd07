package defercall

import (
	"github.com/joeycumines/logiface"
)

// workerOptions holds configuration options for Worker creation.
type workerOptions struct {
	logger  *logiface.Logger[logiface.Event]
	name    string
	daemon  bool
	runOnce bool
}

// --- Worker Options ---

// WorkerOption configures a Worker instance.
type WorkerOption interface {
	applyWorker(*workerOptions) error
}

// workerOptionImpl implements WorkerOption.
type workerOptionImpl struct {
	applyWorkerFunc func(*workerOptions) error
}

func (o *workerOptionImpl) applyWorker(opts *workerOptions) error {
	return o.applyWorkerFunc(opts)
}

// WithName sets the worker's name, used in log output.
// Defaults to a generated "worker-N" name.
func WithName(name string) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.name = name
		return nil
	}}
}

// WithDaemon sets whether the worker is a daemon.
//
// Non-daemon workers (the default) register for [ShutdownAll], the
// process-exit hook surface; daemon workers do not, and rely on their
// holder (or process exit) to stop them.
func WithDaemon(daemon bool) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.daemon = daemon
		return nil
	}}
}

// WithRunOnce configures the worker to accept exactly one submission and
// shut itself down once that call reaches a terminal state.
func WithRunOnce(runOnce bool) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.runOnce = runOnce
		return nil
	}}
}

// WithLogger sets the worker's logger, overriding the package default
// configured via [SetLogger]. Passing nil reverts to the package default.
func WithLogger(logger *logiface.Logger[logiface.Event]) WorkerOption {
	return &workerOptionImpl{func(opts *workerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveWorkerOptions applies WorkerOption instances to workerOptions.
func resolveWorkerOptions(opts []WorkerOption) (*workerOptions, error) {
	cfg := &workerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyWorker(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
