// Package worker drives the claim → execute → decide → persist loop, one
// job at a time, until asked to stop.
//
// Each worker is single-threaded; concurrency comes from running several
// worker processes (or goroutines in serve mode) against the shared store,
// coordinated solely by the atomicity of store.Claim.
//
// Shutdown is graceful by construction: cancelling the loop context stops
// the worker from claiming further jobs, but an in-flight command always
// runs to completion and its outcome is always persisted. Known limitation:
// a worker killed without running this shutdown path (e.g. kill -9) leaves
// its claimed job in 'processing' forever — there is no lease or heartbeat
// to reclaim orphaned jobs.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scarson/queuectl/internal/executor"
	"github.com/scarson/queuectl/internal/retry"
	"github.com/scarson/queuectl/internal/store"
)

// Runner executes one claimed command under a deadline. Satisfied by
// *executor.Runner.
type Runner interface {
	Run(jobID, command string, timeout time.Duration) (executor.Result, error)
}

// Config holds the loop's pacing intervals. Zero values fall back to the
// defaults matching internal/config.
type Config struct {
	IdleSleep  time.Duration // no eligible job
	BusyRetry  time.Duration // transient storage contention
	ErrorPause time.Duration // unexpected loop error
}

// Worker runs the job loop against a shared store.
type Worker struct {
	store  *store.Store
	runner Runner
	cfg    Config
	id     string
	log    *slog.Logger
}

// New creates a Worker. A random worker id distinguishes this loop in logs
// when several processes share one store.
func New(st *store.Store, runner Runner, cfg Config) *Worker {
	if cfg.IdleSleep == 0 {
		cfg.IdleSleep = 800 * time.Millisecond
	}
	if cfg.BusyRetry == 0 {
		cfg.BusyRetry = 500 * time.Millisecond
	}
	if cfg.ErrorPause == 0 {
		cfg.ErrorPause = time.Second
	}
	id := uuid.NewString()
	return &Worker{
		store:  st,
		runner: runner,
		cfg:    cfg,
		id:     id,
		log:    slog.Default().With("worker_id", id),
	}
}

// ID returns the worker's random identifier.
func (w *Worker) ID() string { return w.id }

// Run loops until ctx is cancelled. An idle worker exits promptly; a worker
// mid-execution finishes the current job, persists its outcome, and exits
// without claiming further work. Errors never terminate the loop: transient
// storage errors retry after a short sleep, anything else is logged and
// followed by a pause.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started")
	for {
		if ctx.Err() != nil {
			w.log.Info("worker stopped")
			return
		}

		// WithoutCancel: once a job is claimed, a stop signal must not abort
		// executing it or persisting its outcome. ctx only gates the loop.
		processed, err := w.RunOnce(context.WithoutCancel(ctx))
		switch {
		case err != nil && store.IsTransient(err):
			w.log.Debug("store busy, retrying", "error", err)
			w.sleep(ctx, w.cfg.BusyRetry)
		case err != nil:
			w.log.Error("worker iteration failed", "error", err)
			w.sleep(ctx, w.cfg.ErrorPause)
		case !processed:
			w.sleep(ctx, w.cfg.IdleSleep)
		}
	}
}

// RunOnce performs a single iteration: claim one eligible job, execute it,
// and persist the decided outcome. Returns false when nothing was claimable.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	settings, err := w.store.GetSettings(ctx)
	if err != nil {
		return false, err
	}

	job, err := w.store.Claim(ctx, time.Now())
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	jobsClaimed.Inc()

	w.log.Info("executing job",
		"job_id", job.ID, "attempt", job.Attempts, "max_retries", job.MaxRetries)

	res, err := w.runner.Run(job.ID, job.Command, settings.JobTimeout)
	if err != nil {
		// Runner fault, not a command failure. The job stays in processing;
		// see the package doc on orphaned claims.
		return true, err
	}
	if res.TimedOut {
		jobsTimedOut.Inc()
		w.log.Warn("job timed out", "job_id", job.ID, "timeout", settings.JobTimeout)
	}

	d := retry.Decide(res.ExitCode, job.Attempts, job.MaxRetries, settings.BackoffBase)
	if err := w.store.RecordOutcome(ctx, job.ID, d.State, d.NextRun(time.Now()), res.ExitCode); err != nil {
		return true, err
	}

	switch d.State {
	case store.StateCompleted:
		jobsCompleted.Inc()
		w.log.Info("job completed", "job_id", job.ID, "duration", res.Duration)
	case store.StateDead:
		jobsDead.Inc()
		w.log.Warn("job moved to dead-letter queue",
			"job_id", job.ID, "attempts", job.Attempts, "exit_code", res.ExitCode)
	default:
		jobsRetried.Inc()
		w.log.Info("job failed, retry scheduled",
			"job_id", job.ID, "exit_code", res.ExitCode,
			"attempt", job.Attempts, "delay", d.Delay)
	}
	return true, nil
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
