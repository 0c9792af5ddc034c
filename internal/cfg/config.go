// Package cfg defines the resolved configuration cellarfs mounts and
// optimizes a database with, after CLI flags and config file values have
// been merged by the command layer.
package cfg

import (
	"fmt"
	"slices"
	"strings"
)

// Compression selects the codec new blocks are written with. Existing
// blocks keep whatever compression tag they were written with; this only
// governs writes made during the lifetime of the mount that set it.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
	CompressionZstd Compression = "zstd"
)

func (c *Compression) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	allowed := []string{string(CompressionNone), string(CompressionLZ4), string(CompressionZstd)}
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("invalid compression value: %s, must be one of %v", v, allowed)
	}
	*c = Compression(v)
	return nil
}

// Config is the fully resolved set of parameters a mount or optimize run
// acts on.
type Config struct {
	DBPath      string
	MountPath   string
	Compression Compression
	Key         string
	KeyFile     string
	Foreground  bool
	LogFormat   string
	LogSeverity string
	ReadAheadKB int

	// AutoVacuumIdleSeconds is the idle time, in seconds, after which a
	// mount triggers a vacuum, or zero to disable idle auto-vacuum entirely.
	AutoVacuumIdleSeconds int
}

// Validate checks invariants that span multiple fields and cannot be
// expressed as a single flag's type, run after flag parsing as a separate
// pass.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("--db is required")
	}
	if c.Key == "" && c.KeyFile == "" {
		return fmt.Errorf("exactly one of --key or --key-file is required")
	}
	if c.Key != "" && c.KeyFile != "" {
		return fmt.Errorf("--key and --key-file are mutually exclusive")
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	return nil
}
