package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/tablesync/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAccount creates an account with the given name.
func createTestAccount(t *testing.T, s *Store, name string) ir.AccountID {
	t.Helper()
	id, err := s.CreateAccount(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateAccount(%q) failed: %v", name, err)
	}
	return id
}
