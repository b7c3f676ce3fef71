// Package config parses and validates all process-level configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// Queue-level settings (backoff_base, job_timeout) live in the database
// config table instead, so that every worker process observes updates —
// see the store package.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all process configuration sourced from environment variables.
// Everything has a default; queuectl must run with an empty environment.
type Config struct {
	// ── Storage ─────────────────────────────────────────────────────────────────
	// DataDir holds the SQLite database, worker PID file, and per-job logs.
	// Empty means ~/.queuectl.
	DataDir string `env:"QUEUECTL_DATA_DIR"`

	// ── Worker loop ─────────────────────────────────────────────────────────────
	// IdleSleep is how long a worker sleeps when no job is claimable.
	IdleSleep time.Duration `env:"QUEUECTL_IDLE_SLEEP" envDefault:"800ms"`
	// BusyRetry is the pause after a transient (locked/busy) storage error.
	BusyRetry time.Duration `env:"QUEUECTL_BUSY_RETRY" envDefault:"500ms"`
	// ErrorPause is the pause after an unexpected worker-loop error.
	ErrorPause time.Duration `env:"QUEUECTL_ERROR_PAUSE" envDefault:"1s"`

	// ── Serve mode ──────────────────────────────────────────────────────────────
	ListenAddr             string `env:"QUEUECTL_LISTEN_ADDR"              envDefault:":8311"`
	EmbeddedWorkers        int    `env:"QUEUECTL_EMBEDDED_WORKERS"         envDefault:"1"`
	ShutdownTimeoutSeconds int    `env:"QUEUECTL_SHUTDOWN_TIMEOUT_SECONDS" envDefault:"60"`

	// ── Logging ─────────────────────────────────────────────────────────────────
	LogLevel  string `env:"QUEUECTL_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"QUEUECTL_LOG_FORMAT" envDefault:"text"`
}

// Load parses Config from environment variables and resolves DataDir.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = filepath.Join(home, ".queuectl")
	}
	return cfg, nil
}

// DBPath returns the SQLite database file path under DataDir.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "queue.db") }

// PIDPath returns the worker PID registry file path under DataDir.
func (c *Config) PIDPath() string { return filepath.Join(c.DataDir, "worker_pids.txt") }

// LogDir returns the per-job log directory under DataDir.
func (c *Config) LogDir() string { return filepath.Join(c.DataDir, "logs") }
