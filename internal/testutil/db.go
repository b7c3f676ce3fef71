// ABOUTME: Test helper that opens a throwaway SQLite store with all
// ABOUTME: migrations applied. Use NewTestDB(t) in tests that need a real store.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/scarson/queuectl/internal/store"
)

// NewTestDB opens a store backed by a temp-file SQLite database with the
// embedded migrations applied. The file lives in t.TempDir() and the store
// is closed via t.Cleanup. A file (not :memory:) database is used so tests
// exercise the same WAL/busy-timeout path as production, and so concurrent
// connections see one shared database.
func NewTestDB(t *testing.T) *store.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("close test store: %v", err)
		}
	})
	return s
}
