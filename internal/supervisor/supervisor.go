package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// Supervisor spawns and signals detached worker processes, each running
// `queuectl worker run`.
type Supervisor struct {
	reg Registry
	log *slog.Logger
}

// New creates a Supervisor recording PIDs in reg.
func New(reg Registry) *Supervisor {
	return &Supervisor{reg: reg, log: slog.Default()}
}

// Start launches count background worker processes re-executing the current
// binary with `worker run`, records their PIDs, and returns them. Workers
// run in their own sessions so terminal signals to the CLI do not reach
// them; they are stopped via Stop.
func (s *Supervisor) Start(count int) ([]int, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate binary: %w", err)
	}

	pids := make([]int, 0, count)
	for i := 0; i < count; i++ {
		cmd := exec.Command(exe, "worker", "run")
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		if err := cmd.Start(); err != nil {
			return pids, fmt.Errorf("spawn worker: %w", err)
		}
		pid := cmd.Process.Pid
		// Detach: the worker outlives this CLI invocation.
		if err := cmd.Process.Release(); err != nil {
			s.log.Warn("release worker process handle", "pid", pid, "error", err)
		}
		pids = append(pids, pid)
		s.log.Info("started worker", "pid", pid)
	}

	if err := s.reg.Append(pids); err != nil {
		return pids, err
	}
	return pids, nil
}

// Stop sends SIGTERM to every recorded worker and clears the registry.
// SIGTERM triggers the worker's graceful path: finish the in-flight
// command, persist its outcome, exit. Returns the number of processes
// signalled; already-gone PIDs are skipped.
func (s *Supervisor) Stop() (int, error) {
	pids, err := s.reg.List()
	if err != nil {
		return 0, err
	}

	signalled := 0
	for _, pid := range pids {
		if err := s.reg.Signal(pid, syscall.SIGTERM); err != nil {
			if errors.Is(err, syscall.ESRCH) {
				s.log.Info("worker already gone", "pid", pid)
				continue
			}
			s.log.Warn("signal worker", "pid", pid, "error", err)
			continue
		}
		s.log.Info("signalled worker for shutdown", "pid", pid)
		signalled++
	}

	return signalled, s.reg.Clear()
}

// Running returns the subset of recorded PIDs that are still alive.
func (s *Supervisor) Running() ([]int, error) {
	pids, err := s.reg.List()
	if err != nil {
		return nil, err
	}
	var alive []int
	for _, pid := range pids {
		if Alive(pid) {
			alive = append(alive, pid)
		}
	}
	return alive, nil
}
