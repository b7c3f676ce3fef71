// Command queuectl is a single-host persistent job queue: jobs are shell
// commands stored in SQLite, executed by worker processes with exponential
// backoff, per-job timeouts, and a dead-letter queue.
//
// Subcommands:
//
//	enqueue       — submit a job as a JSON payload
//	worker        — start/stop background workers, or run one in foreground
//	serve         — HTTP API + embedded workers
//	status        — job-state counts and live worker PIDs
//	list          — list jobs, optionally by state
//	logs          — print a job's captured output
//	dlq           — list/retry dead-letter jobs
//	config        — get/set queue settings (backoff_base, job_timeout)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	// Sets GOMEMLIMIT from the cgroup memory limit so the GC triggers
	// before the OOM killer when serve mode runs in a container.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/spf13/cobra"

	"github.com/scarson/queuectl/internal/api"
	"github.com/scarson/queuectl/internal/config"
	"github.com/scarson/queuectl/internal/executor"
	"github.com/scarson/queuectl/internal/store"
	"github.com/scarson/queuectl/internal/worker"
)

func main() {
	root := &cobra.Command{
		Use:   "queuectl",
		Short: "queuectl — persistent shell-command job queue with retries and a DLQ",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		enqueueCmd(),
		workerCmd(),
		serveCmd(),
		statusCmd(),
		listCmd(),
		logsCmd(),
		dlqCmd(),
		configCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setup loads config, installs the logger, and opens the store. Every
// subcommand goes through here so they all share one initialization path.
func setup() (*config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg))

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w", err)
	}
	return cfg, st, nil
}

// newWorker wires a worker loop from cfg and st.
func newWorker(cfg *config.Config, st *store.Store) (*worker.Worker, error) {
	sink, err := executor.NewFileSink(cfg.LogDir())
	if err != nil {
		return nil, err
	}
	return worker.New(st, executor.NewRunner(sink), worker.Config{
		IdleSleep:  cfg.IdleSleep,
		BusyRetry:  cfg.BusyRetry,
		ErrorPause: cfg.ErrorPause,
	}), nil
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API with embedded workers",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, st, err := setup()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Embedded workers share the process; each runs the same loop a
	// standalone `worker run` process would.
	var wg sync.WaitGroup
	for i := 0; i < cfg.EmbeddedWorkers; i++ {
		w, err := newWorker(cfg, st)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewServer(st).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.ListenAddr, "workers", cfg.EmbeddedWorkers)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		stop() // release signal notification
	}

	slog.Info("shutting down", "timeout_seconds", cfg.ShutdownTimeoutSeconds)
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	wg.Wait() // workers drain: in-flight jobs finish and persist
	slog.Info("server stopped")
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
