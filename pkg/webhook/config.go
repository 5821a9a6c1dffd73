// Package webhook is the entry point for spreadsheet edit-trigger events.
// It validates the inbound payload, fans out over every tenant in the rule
// index, evaluates conditions, and dispatches matched rules on a bounded
// worker group.
package webhook

import (
	"os"
	"strconv"
	"time"
)

// Config controls webhook fan-out behavior.
type Config struct {
	DispatchConcurrency int           // Max in-flight dispatches per event. Default 10.
	DispatchTimeout     time.Duration // Per-dispatch deadline, fallback included. Default 5s.
}

// DefaultConfig returns the default webhook configuration.
func DefaultConfig() *Config {
	return &Config{
		DispatchConcurrency: 10,
		DispatchTimeout:     5 * time.Second,
	}
}

// ConfigFromEnv loads config from environment variables.
// AUTOMATION_DISPATCH_CONCURRENCY, AUTOMATION_DISPATCH_TIMEOUT_SECONDS
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("AUTOMATION_DISPATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DispatchConcurrency = n
		}
	}

	if v := os.Getenv("AUTOMATION_DISPATCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DispatchTimeout = time.Duration(n) * time.Second
		}
	}

	return cfg
}
