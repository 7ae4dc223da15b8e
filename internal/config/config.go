// Package config loads hexdis settings from a TOML file. Command-line flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"hexdis/internal/asm"
	"hexdis/internal/numfmt"
)

// EnvPath overrides the default config file location.
const EnvPath = "HEXDIS_CONFIG"

type Config struct {
	Arch     asm.Arch      `toml:"arch" json:"arch" jsonschema:"title=Architecture,description=Default decode mode,enum=x86_16,enum=x86_32"`
	Format   numfmt.Format `toml:"format" json:"format" jsonschema:"title=Number format,description=Base used for operands,enum=hex,enum=dec,enum=bin"`
	Base     uint64        `toml:"base" json:"base" jsonschema:"title=Base address,description=Address of the first byte of raw input"`
	MaxCount int           `toml:"max_count" json:"max_count" jsonschema:"title=Max count,description=Stop after this many instructions; 0 means no limit,minimum=0"`
	Color    bool          `toml:"color" json:"color" jsonschema:"title=Color,description=Syntax highlight listings on a terminal"`
	LogLevel string        `toml:"log_level" json:"log_level" jsonschema:"title=Log level,enum=debug,enum=info,enum=warn,enum=error"`
	PageSize int           `toml:"page_size" json:"page_size" jsonschema:"title=Page size,description=Instructions decoded per viewer page,minimum=1"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Arch:     asm.Arch32,
		Format:   numfmt.Hex,
		Color:    true,
		LogLevel: "info",
		PageSize: 512,
	}
}

// DefaultPath is $HEXDIS_CONFIG, else hexdis/config.toml under the user
// config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "hexdis", "config.toml")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Default(), fmt.Errorf("config %s: unknown key %q", path, undec[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks ranges the TOML types cannot express.
func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	if c.MaxCount < 0 {
		return fmt.Errorf("max_count %d is negative", c.MaxCount)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size %d: must be at least 1", c.PageSize)
	}
	return nil
}
