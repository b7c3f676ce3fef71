// Package supervisor starts and stops worker OS processes and tracks their
// PIDs in an external registry. It is deliberately decoupled from the job
// store: killing a worker process says nothing about job state, and the
// state machine never consults the registry.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Registry tracks worker process identifiers outside the job store.
type Registry interface {
	List() ([]int, error)
	Append(pids []int) error
	Clear() error
	Signal(pid int, sig syscall.Signal) error
}

// FileRegistry is a Registry backed by a newline-separated PID file, the
// same layout the original tooling around this queue used.
type FileRegistry struct {
	path string
}

// NewFileRegistry returns a FileRegistry at path. The file is created on
// first Append.
func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{path: path}
}

// List returns the recorded PIDs. A missing file means no workers.
func (r *FileRegistry) List() ([]int, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pid file: %w", err)
	}
	var pids []int
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue // tolerate junk lines rather than refuse to stop workers
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Append records additional PIDs.
func (r *FileRegistry) Append(pids []int) error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open pid file: %w", err)
	}
	defer f.Close()
	for _, pid := range pids {
		if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
			return fmt.Errorf("write pid file: %w", err)
		}
	}
	return nil
}

// Clear removes the registry file.
func (r *FileRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// Signal delivers sig to pid.
func (r *FileRegistry) Signal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// Alive reports whether pid names a running process (signal 0 probe).
func Alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
