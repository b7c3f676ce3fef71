// Package executor runs a claimed job's shell command as a child process
// under a hard wall-clock deadline.
//
// Run deliberately takes no context: worker shutdown must never cancel an
// in-flight command (the worker waits for the result and persists it before
// exiting). The only thing that stops a running command early is the
// per-job timeout, enforced with a timer and a process-group kill rather
// than a poll loop.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// TimeoutExitCode is the sentinel recorded when a command exceeds its
// deadline and is force-terminated. Distinct from any real exit code, which
// is always in [0, 255].
const TimeoutExitCode = -1

// spawnExitCode is recorded when the shell itself cannot be started,
// mirroring the shell's own "command not found" convention.
const spawnExitCode = 127

// Result is the outcome of one execution attempt.
type Result struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Runner executes commands and streams their combined output to a per-job
// log sink.
type Runner struct {
	sink LogSink
	log  *slog.Logger
}

// NewRunner creates a Runner writing command output through sink.
func NewRunner(sink LogSink) *Runner {
	return &Runner{sink: sink, log: slog.Default()}
}

// Run executes command via `sh -c` and blocks until it exits or the
// deadline fires. On deadline the whole process group is SIGKILLed and the
// result carries TimeoutExitCode with TimedOut set. An execution failure is
// not an error: the error return is reserved for faults in the runner
// itself, which the worker loop treats as unexpected.
func (r *Runner) Run(jobID, command string, timeout time.Duration) (Result, error) {
	start := time.Now()

	out, err := r.sink.Open(jobID)
	if err != nil {
		return Result{}, fmt.Errorf("open log sink for %s: %w", jobID, err)
	}
	defer out.Close()

	cmd := exec.Command("sh", "-c", command)
	cmd.Stdout = out
	cmd.Stderr = out
	// Own process group so a timeout kill reaches the command's children,
	// not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(out, "queuectl: failed to start command: %v\n", err)
		return Result{ExitCode: spawnExitCode, Duration: time.Since(start)}, nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case werr := <-done:
		return Result{ExitCode: exitCode(werr), Duration: time.Since(start)}, nil
	case <-timer.C:
		// Negative pid signals the process group.
		if kerr := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); kerr != nil {
			r.log.Warn("kill timed-out command", "job_id", jobID, "error", kerr)
		}
		<-done // reap; ignore the "signal: killed" error
		fmt.Fprintf(out, "queuectl: command killed after %s timeout\n", timeout)
		return Result{ExitCode: TimeoutExitCode, TimedOut: true, Duration: time.Since(start)}, nil
	}
}

// exitCode extracts the process exit code from cmd.Wait's error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return spawnExitCode
}
