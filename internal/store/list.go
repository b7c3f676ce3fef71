// ABOUTME: Read-only projections over job rows: filtered listing and
// ABOUTME: per-state counts. Pure queries, no state-machine logic.
package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const jobColumns = "id, command, state, attempts, max_retries, priority, created_at, updated_at, next_run, last_exit_code"

// ListJobs returns jobs ordered oldest-first, optionally filtered by state.
// state == "" means all states. limit <= 0 means no limit.
func (s *Store) ListJobs(ctx context.Context, state State, limit int) ([]*Job, error) {
	b := sq.Select(jobColumns).From("jobs").OrderBy("created_at ASC", "id ASC")
	if state != "" {
		b = b.Where(sq.Eq{"state": state})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Stats returns the number of jobs in each state. States with no jobs are
// present with a zero count.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	out := make(map[State]int, len(States))
	for _, st := range States {
		out[st] = 0
	}

	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("job stats: %w", err)
		}
		out[State(st)] = n
	}
	return out, rows.Err()
}
