// Package logging builds charmbracelet/log loggers configured from the
// environment, with optional file output.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to a level. Anything else
// is info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(s) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// NewLoggerWithWriter creates a logger writing to w. fallback is the level
// used when HEXDIS_LOG_LEVEL is unset.
func NewLoggerWithWriter(w io.Writer, fallback string) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})

	level := os.Getenv("HEXDIS_LOG_LEVEL")
	if level == "" {
		level = fallback
	}
	lg.SetLevel(ParseLevel(level))

	prefix := os.Getenv("HEXDIS_LOG_PREFIX")
	if prefix == "" {
		prefix = "hexdis"
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a logger based on environment variables
// HEXDIS_LOG_LEVEL: debug, info, warn, error (default: fallback)
// HEXDIS_LOG_PREFIX: prefix for log messages (default: "hexdis")
// HEXDIS_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
func NewLogger(fallback string) *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("HEXDIS_LOG_TO_FILE") == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("hexdis-%s-debug.log", timestamp)

		// On failure keep stderr.
		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
	}

	return NewLoggerWithWriter(output, fallback)
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return os.Getenv("HEXDIS_LOG_LEVEL") == "debug"
}
