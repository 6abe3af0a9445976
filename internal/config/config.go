package config

import (
	"fmt"
	"runtime"
	"strings"
)

type AuditMode int

const (
	AuditOff AuditMode = iota
	AuditSampled
	AuditAll
)

// Config carries the kernel runtime settings: how many threads the CPU
// engine spreads rows over, how many compiled primitives the process-wide
// cache may hold, and which audit/observability surfaces are on.
type Config struct {
	NumThreads int

	// PrimitiveCacheCap bounds the number of cached compiled primitives.
	// Zero means unbounded.
	PrimitiveCacheCap int

	AuditMode       AuditMode
	AuditSampleSize int

	MonitorAddr string

	LogLevel  string
	LogFormat string

	DebugPrimitives bool
	DebugPool       bool
}

func (c *Config) Validate() error {
	if c.NumThreads <= 0 {
		return fmt.Errorf("invalid num_threads: %d (must be positive)", c.NumThreads)
	}
	if c.PrimitiveCacheCap < 0 {
		return fmt.Errorf("invalid primitive_cache_cap: %d (must be non-negative)", c.PrimitiveCacheCap)
	}
	if c.AuditMode < AuditOff || c.AuditMode > AuditAll {
		return fmt.Errorf("invalid audit_mode: %d", c.AuditMode)
	}
	if c.AuditMode == AuditSampled && c.AuditSampleSize <= 0 {
		return fmt.Errorf("invalid audit_sample_size: %d (must be positive for sampled audits)", c.AuditSampleSize)
	}
	switch strings.ToUpper(c.LogLevel) {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log_format: %q", c.LogFormat)
	}
	return nil
}

func (c *Config) AuditEnabled() bool {
	return c.AuditMode != AuditOff
}

func Default() Config {
	return Config{
		NumThreads:        runtime.NumCPU(),
		PrimitiveCacheCap: 1024,
		AuditMode:         AuditSampled,
		AuditSampleSize:   8,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}
