// Package testutil holds helpers shared by package tests: temp-dir stores,
// seeded accounts and rows, and deterministic request ids.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/store"
)

// NewStore opens a fresh store in t.TempDir and closes it on cleanup.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// NewAccount creates an account.
func NewAccount(t testing.TB, s *store.Store, name string) ir.AccountID {
	t.Helper()
	id, err := s.CreateAccount(context.Background(), name)
	require.NoError(t, err)
	return id
}

// SeedBranches inserts branch rows directly, without change-log entries,
// and returns their ids.
func SeedBranches(t testing.TB, s *store.Store, account ir.AccountID, names ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		res, err := s.DB().Exec(`INSERT INTO branch (idAccount, name) VALUES (?, ?)`, int64(account), name)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// CountRows returns how many rows of table belong to account.
func CountRows(t testing.TB, s *store.Store, account ir.AccountID, table string) int64 {
	t.Helper()
	n, err := s.CountRows(context.Background(), account, table)
	require.NoError(t, err)
	return n
}

// CountAll returns the row count of table across all accounts.
func CountAll(t testing.TB, s *store.Store, table string) int64 {
	t.Helper()
	n, err := store.Scalar(context.Background(), s.DB(), fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	require.NoError(t, err)
	return n
}

// BreakLog installs a trigger that aborts every insert into the given
// change-log table.
func BreakLog(t testing.TB, s *store.Store, table string) {
	t.Helper()
	_, err := s.DB().Exec(fmt.Sprintf(
		`CREATE TRIGGER break_%[1]s BEFORE INSERT ON %[1]s BEGIN SELECT RAISE(ABORT, 'forced log failure'); END`,
		table))
	require.NoError(t, err)
}
