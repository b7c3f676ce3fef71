// ABOUTME: Per-job log sinks: a writable stream keyed by job id. The file
// ABOUTME: sink appends stdout+stderr of every attempt to <dir>/<id>.log.
package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LogSink provides the output stream for a job's command. Successive
// attempts of the same job append to the same stream.
type LogSink interface {
	Open(jobID string) (io.WriteCloser, error)
}

// FileSink stores one append-mode log file per job id under a directory.
type FileSink struct {
	dir string
}

// NewFileSink creates the log directory if needed and returns a FileSink.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Open opens the job's log file for appending.
func (s *FileSink) Open(jobID string) (io.WriteCloser, error) {
	return os.OpenFile(s.Path(jobID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Path returns the log file path for jobID. Path separators in the id are
// flattened so a job id can never escape the log directory.
func (s *FileSink) Path(jobID string) string {
	safe := strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(jobID)
	return filepath.Join(s.dir, safe+".log")
}
