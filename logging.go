// logging.go - package-level logger configuration.
//
// Logging is an infrastructure cross-cutting concern; workers share logging
// semantics unless overridden per instance via WithLogger.

package defercall

import (
	"sync"

	"github.com/joeycumines/logiface"
)

var globalLogger struct {
	sync.RWMutex
	logger *logiface.Logger[logiface.Event]
}

// SetLogger sets the package-level logger, used by workers without a
// [WithLogger] override. A nil logger (the default) disables logging.
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// getGlobalLogger safely retrieves the package-level logger.
// May return nil; logiface treats a nil logger as a no-op.
func getGlobalLogger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.logger
}
