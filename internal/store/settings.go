// ABOUTME: Queue-level settings stored in the config key/value table so all
// ABOUTME: worker processes observe changes. Core reads backoff_base and job_timeout.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Config keys interpreted by the core. Unknown keys are stored and served
// verbatim but otherwise unused.
const (
	KeyBackoffBase = "backoff_base"
	KeyJobTimeout  = "job_timeout"
)

const (
	DefaultBackoffBase = 2
	DefaultJobTimeout  = 30 * time.Second
)

// Settings are the queue tunables the worker loop reads before each claim.
// Reads are uncoordinated; a worker may briefly observe a stale value.
type Settings struct {
	BackoffBase int
	JobTimeout  time.Duration
}

// GetSettings reads the interpreted config keys, applying defaults for
// missing or unparseable values. backoff_base below 1 falls back to the
// default rather than producing a shrinking backoff.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	out := Settings{BackoffBase: DefaultBackoffBase, JobTimeout: DefaultJobTimeout}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config WHERE key IN (?, ?)`,
		KeyBackoffBase, KeyJobTimeout)
	if err != nil {
		return out, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return out, fmt.Errorf("get settings: %w", err)
		}
		switch k {
		case KeyBackoffBase:
			if n, err := strconv.Atoi(v); err == nil && n >= 1 {
				out.BackoffBase = n
			}
		case KeyJobTimeout:
			if n, err := strconv.Atoi(v); err == nil && n >= 1 {
				out.JobTimeout = time.Duration(n) * time.Second
			}
		}
	}
	return out, rows.Err()
}

// GetValue returns the raw config value for key, or def when unset.
func (s *Store) GetValue(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return v, nil
}

// SetValue upserts a config key.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO config (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}
