package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// State is a job lifecycle stage. Transitions are restricted to:
//
//	pending --claim--> processing
//	processing --exit==0--> completed
//	processing --exit!=0, attempts>max_retries--> dead
//	processing --exit!=0, attempts<=max_retries--> pending
//	dead --dlq retry--> pending
//
// completed and dead are terminal for the worker loop; only the external
// DLQ retry operation moves a job out of dead.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateDead       State = "dead"
)

// States lists all states in display order.
var States = []State{StatePending, StateProcessing, StateCompleted, StateDead}

// Valid reports whether s is a known job state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateDead:
		return true
	}
	return false
}

// Job is one durable job row.
type Job struct {
	ID           string    `json:"id"`
	Command      string    `json:"command"`
	State        State     `json:"state"`
	Attempts     int       `json:"attempts"`
	MaxRetries   int       `json:"max_retries"`
	Priority     int       `json:"priority"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	NextRun      int64     `json:"next_run"` // epoch seconds; meaningful only while pending
	LastExitCode *int      `json:"last_exit_code,omitempty"`
}

// ClaimedJob is the subset of a job row a worker needs after a successful
// claim. Attempts is the post-increment count, so the first execution of a
// job observes Attempts == 1.
type ClaimedJob struct {
	ID         string
	Command    string
	Attempts   int
	MaxRetries int
}

// EnqueueParams is the external job submission payload.
type EnqueueParams struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries,omitempty"` // nil means 3
	Priority   int    `json:"priority,omitempty"`
	RunAt      *int64 `json:"run_at,omitempty"` // epoch seconds; nil means now
}

const defaultMaxRetries = 3

// EnqueueJob validates params and inserts a new pending job. Returns
// ErrInvalidInput (wrapped with detail) on a malformed submission and
// ErrDuplicateID when the id is already taken.
func (s *Store) EnqueueJob(ctx context.Context, p EnqueueParams) (*Job, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("%w: missing field 'id'", ErrInvalidInput)
	}
	if p.Command == "" {
		return nil, fmt.Errorf("%w: missing field 'command'", ErrInvalidInput)
	}
	maxRetries := defaultMaxRetries
	if p.MaxRetries != nil {
		if *p.MaxRetries < 0 {
			return nil, fmt.Errorf("%w: max_retries must be >= 0", ErrInvalidInput)
		}
		maxRetries = *p.MaxRetries
	}

	now := time.Now().UTC()
	nextRun := now.Unix()
	if p.RunAt != nil {
		nextRun = *p.RunAt
	}

	j := &Job{
		ID:         p.ID,
		Command:    p.Command,
		State:      StatePending,
		MaxRetries: maxRetries,
		Priority:   p.Priority,
		CreatedAt:  now,
		UpdatedAt:  now,
		NextRun:    nextRun,
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id, command, state, attempts, max_retries, priority, created_at, updated_at, next_run)
VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		j.ID, j.Command, j.State, j.MaxRetries, j.Priority, j.CreatedAt, j.UpdatedAt, j.NextRun)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateID
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return j, nil
}

// Claim atomically selects and reserves the highest-priority eligible
// pending job (ties broken by earliest created_at): it transitions the row
// to processing, increments attempts, and returns that same row via the
// RETURNING clause. Selection, mutation, and identification are one SQL
// statement, so concurrent claimants can never observe each other's rows.
// Returns (nil, nil) when no job is eligible; the caller must not block.
func (s *Store) Claim(ctx context.Context, now time.Time) (*ClaimedJob, error) {
	row := s.db.QueryRowContext(ctx, `
UPDATE jobs
SET state = 'processing', attempts = attempts + 1, updated_at = ?
WHERE id = (
    SELECT id FROM jobs
    WHERE state = 'pending' AND next_run <= ?
    ORDER BY priority DESC, created_at ASC, id ASC
    LIMIT 1
)
RETURNING id, command, attempts, max_retries`,
		now.UTC(), now.Unix())

	var j ClaimedJob
	if err := row.Scan(&j.ID, &j.Command, &j.Attempts, &j.MaxRetries); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &j, nil
}

// RecordOutcome persists the post-execution state of a claimed job as one
// conditional update: new state, next eligible time, and last exit code.
// The state='processing' guard means an outcome can only be recorded by the
// worker that holds the claim.
func (s *Store) RecordOutcome(ctx context.Context, id string, state State, nextRun int64, exitCode int) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = ?, next_run = ?, last_exit_code = ?, updated_at = ?
WHERE id = ? AND state = 'processing'`,
		state, nextRun, exitCode, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("record outcome for %s: job no longer processing", id)
	}
	return nil
}

// GetJob returns the job with the given id, or (nil, nil) if absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, command, state, attempts, max_retries, priority, created_at, updated_at, next_run, last_exit_code
FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var exit sql.NullInt64
	if err := row.Scan(&j.ID, &j.Command, &j.State, &j.Attempts, &j.MaxRetries,
		&j.Priority, &j.CreatedAt, &j.UpdatedAt, &j.NextRun, &exit); err != nil {
		return nil, err
	}
	if exit.Valid {
		v := int(exit.Int64)
		j.LastExitCode = &v
	}
	return &j, nil
}
