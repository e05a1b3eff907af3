// Package engine wires together the Root, Scheduler, backend registry, and
// on-disk configuration into a runnable process, and provides the ambient
// logging wrapper. The debug lock-ownership assertions live in pkg/lockdbg.
package engine

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is a structured, leveled logger tagged with the worker, device, or
// song it is reporting on, wrapping charmbracelet/log rather than
// reimplementing a level logger from scratch.
type Logger = log.Logger

var defaultLogger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Level:           log.InfoLevel,
})

// Default returns the process-wide logger. Call With on it to tag a
// subsystem's log lines, e.g. Default().With("worker", "play-rec").
func Default() *Logger {
	return defaultLogger
}

// SetLevel sets the minimum level the default logger emits.
func SetLevel(level log.Level) {
	defaultLogger.SetLevel(level)
}

// With returns a child logger with the given key/value pairs attached to
// every line it emits, e.g. With("device", devNo, "dir", "rx").
func With(keyvals ...interface{}) *Logger {
	return defaultLogger.With(keyvals...)
}
