package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hexdis/internal/asm"
	"hexdis/internal/numfmt"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    func(*Config)
		wantErr string
	}{
		{
			name: "empty file keeps defaults",
			body: "",
			want: func(*Config) {},
		},
		{
			name: "all keys",
			body: `
arch = "x86_16"
format = "bin"
base = 0x7C00
max_count = 100
color = false
log_level = "debug"
page_size = 64
`,
			want: func(c *Config) {
				c.Arch = asm.Arch16
				c.Format = numfmt.Bin
				c.Base = 0x7C00
				c.MaxCount = 100
				c.Color = false
				c.LogLevel = "debug"
				c.PageSize = 64
			},
		},
		{
			name: "aliases",
			body: "arch = \"i386\"\nformat = \"DEC\"\n",
			want: func(c *Config) {
				c.Arch = asm.Arch32
				c.Format = numfmt.Dec
			},
		},
		{name: "bad arch", body: `arch = "arm64"`, wantErr: "unknown architecture"},
		{name: "bad format", body: `format = "oct"`, wantErr: "unknown number format"},
		{name: "unknown key", body: `colour = true`, wantErr: "unknown key"},
		{name: "bad level", body: `log_level = "trace"`, wantErr: "log_level"},
		{name: "bad page size", body: `page_size = 0`, wantErr: "page_size"},
		{name: "syntax", body: `arch = `, wantErr: "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(write(t, tt.body))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want it to mention %q", err, tt.wantErr)
				}
				if diff := cmp.Diff(Default(), got); diff != "" {
					t.Errorf("failed Load should return defaults (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			want := Default()
			tt.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load(missing) error = %v", err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("Load(missing) mismatch (-want +got):\n%s", diff)
	}
	if _, err := Load(""); err != nil {
		t.Errorf("Load(\"\") error = %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/custom.toml")
	if got := DefaultPath(); got != "/tmp/custom.toml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv(EnvPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := DefaultPath(); got != filepath.Join("/tmp/xdg", "hexdis", "config.toml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}
