// ABOUTME: Dead-letter queue operations. DLQ entries are ordinary job rows
// ABOUTME: in terminal 'dead' state; retry is the only way back out.
package store

import (
	"context"
	"fmt"
	"time"
)

// ListDead returns the jobs currently in the dead-letter queue.
func (s *Store) ListDead(ctx context.Context) ([]*Job, error) {
	return s.ListJobs(ctx, StateDead, 0)
}

// RetryDead moves a dead job back to pending: attempts reset to 0 and
// next_run set to now, so it is immediately claimable. Returns ErrNotFound
// when the id is unknown or the job is not in the dead state — the
// conditional update guarantees no other state can be mutated.
func (s *Store) RetryDead(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = 'pending', attempts = 0, next_run = ?, updated_at = ?
WHERE id = ? AND state = 'dead'`,
		now.Unix(), now, id)
	if err != nil {
		return fmt.Errorf("dlq retry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return ErrNotFound
	}
	return nil
}
