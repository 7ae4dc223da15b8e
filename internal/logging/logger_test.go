package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"WARN", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"info", log.InfoLevel},
		{"", log.InfoLevel},
		{"trace", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnvironmentOverridesFallback(t *testing.T) {
	t.Setenv("HEXDIS_LOG_LEVEL", "error")
	t.Setenv("HEXDIS_LOG_PREFIX", "test")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf, "debug")
	lg.Warn("dropped")
	lg.Error("kept", "n", 1)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("warn logged at error level: %q", out)
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "test") {
		t.Errorf("missing error line or prefix: %q", out)
	}
	if err := lg.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestFallbackLevel(t *testing.T) {
	t.Setenv("HEXDIS_LOG_LEVEL", "")

	var buf bytes.Buffer
	lg := NewLoggerWithWriter(&buf, "debug")
	lg.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing with debug fallback: %q", buf.String())
	}
	if IsDebug() {
		t.Error("IsDebug() true with HEXDIS_LOG_LEVEL unset")
	}
}
