package defercall

import (
	"sync/atomic"
)

// WorkerState represents the current lifecycle state of a [Worker].
//
// State Machine:
//
//	StateConstructed (0) → StateStarting (1)     [Start()]
//	StateStarting (1) → StateReady (2)           [loop goroutine, after bootstrap]
//	StateStarting (1) → StateShuttingDown (3)    [Shutdown() during bootstrap]
//	StateReady (2) → StateShuttingDown (3)       [Shutdown()]
//	StateStarting/StateReady/StateShuttingDown → StateTerminated (4)
//	                                             [loop goroutine exit]
//	StateTerminated (4) → (terminal)
//
// State Transition Rules:
//   - Use TryTransition() (CAS) for externally-triggered transitions
//     (Start, Shutdown), which may race with each other
//   - Use Store() for transitions owned exclusively by the loop goroutine
//     (Ready, Terminated)
type WorkerState uint32

const (
	// StateConstructed indicates the worker has been created but not started.
	StateConstructed WorkerState = iota
	// StateStarting indicates Start has been called but the loop goroutine
	// has not yet signaled readiness.
	StateStarting
	// StateReady indicates the loop is live and accepting submissions.
	StateReady
	// StateShuttingDown indicates shutdown has been signaled but the loop
	// goroutine has not yet exited.
	StateShuttingDown
	// StateTerminated indicates the loop goroutine has exited.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s WorkerState) String() string {
	switch s {
	case StateConstructed:
		return "Constructed"
	case StateStarting:
		return "Starting"
	case StateReady:
		return "Ready"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// workerState is a lock-free state machine using pure atomic CAS operations.
type workerState struct {
	v atomic.Uint32
}

// Load returns the current state atomically.
func (s *workerState) Load() WorkerState {
	return WorkerState(s.v.Load())
}

// Store atomically stores a new state.
// Reserved for transitions owned by the loop goroutine; external callers
// must use TryTransition.
func (s *workerState) Store(state WorkerState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *workerState) TryTransition(from, to WorkerState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny attempts to transition from any of the given source states
// to the target. Returns true if a transition was made.
func (s *workerState) TransitionAny(validFrom []WorkerState, to WorkerState) bool {
	for _, from := range validFrom {
		if s.v.CompareAndSwap(uint32(from), uint32(to)) {
			return true
		}
	}
	return false
}

// Alive returns true while the loop goroutine is running (or starting).
// It mirrors thread liveness: true from a successful transition into
// StateStarting until the goroutine exits and stores StateTerminated.
func (s *workerState) Alive() bool {
	state := s.Load()
	return state == StateStarting || state == StateReady || state == StateShuttingDown
}
