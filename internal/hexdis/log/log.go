// Package log installs the process-wide slog handler.
package log

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"

	"hexdis/internal/logging"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
	logger      *logging.LoggerCloser
)

// Setup routes slog through a charm logger. debug forces the debug level;
// otherwise level applies unless HEXDIS_LOG_LEVEL is set. Only the first
// call has an effect.
func Setup(level string, debug bool) {
	initOnce.Do(func() {
		if debug {
			level = "debug"
		}
		logger = logging.NewLogger(level)
		if debug {
			logger.SetLevel(charmlog.DebugLevel)
			logger.SetReportCaller(true)
		}
		slog.SetDefault(slog.New(logger.Logger))
		initialized.Store(true)
	})
}

// Logger returns the installed logger, or nil before Setup.
func Logger() *charmlog.Logger {
	if logger == nil {
		return nil
	}
	return logger.Logger
}

func Initialized() bool {
	return initialized.Load()
}

// Close flushes file-backed output.
func Close() error {
	if logger == nil {
		return nil
	}
	return logger.Close()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
