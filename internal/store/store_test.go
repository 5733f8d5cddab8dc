package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tablesync.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, "acme")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	for i := 0; i < 2; i++ {
		s, err = Open(path)
		require.NoError(t, err, "open #%d", i+2)
		_, err = s.AccountByName(ctx, "acme")
		assert.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	// One connection, so every statement sees the same database.
	ctx := context.Background()
	account, err := s.CreateAccount(ctx, "acme")
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, `INSERT INTO branch (idAccount, name) VALUES (?, 'main')`, int64(account))
	require.NoError(t, err)

	n, err := s.CountRows(ctx, account, "branch")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())

	s := createTestStore(t)
	assert.NoError(t, s.Close())
	assert.NotPanics(t, func() { _ = s.Close() })
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	for name, want := range map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	} {
		assert.NoError(t, s.verifyPragma(name, want))
	}
}

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"account": {"id", "name"},
		"user":    {"id", "idAccount", "name", "password"},
		"erase":   {"id", "idAccount", "tableId", "idRow"},
		"modify":  {"id", "idAccount", "tableId", "idRow"},
		"branch":  {"id", "idAccount", "name"},
	}
	for table, want := range expected {
		assert.Equal(t, want, tableColumns(t, s.db, table), table)
	}
}

func TestSchema_Version(t *testing.T) {
	s := createTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestMigrations_RestoreLogIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	s, err := Open(path)
	require.NoError(t, err)
	for _, idx := range []string{"idx_modify_account_table_id", "idx_modify_account_table_row", "idx_erase_account_id"} {
		_, err := s.db.Exec("DROP INDEX " + idx)
		require.NoError(t, err)
	}
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Subset(t, tableIndexes(t, s.db, "modify"), []string{"idx_modify_account_table_id", "idx_modify_account_table_row"})
	assert.Contains(t, tableIndexes(t, s.db, "erase"), "idx_erase_account_id")

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestSchema_IDsNeverReissued(t *testing.T) {
	s := createTestStore(t)
	account := createTestAccount(t, s, "acme")

	for i := 0; i < 2; i++ {
		_, err := s.db.Exec(`INSERT INTO branch (idAccount, name) VALUES (?, 'b')`, int64(account))
		require.NoError(t, err)
	}
	_, err := s.db.Exec(`DELETE FROM branch WHERE id = 2`)
	require.NoError(t, err)

	res, err := s.db.Exec(`INSERT INTO branch (idAccount, name) VALUES (?, 'c')`, int64(account))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestConstraints(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO branch (idAccount, name) VALUES (99, 'x')`)
	assert.Error(t, err, "branch needs an existing account")

	account := createTestAccount(t, s, "acme")
	_, err = s.CreateUser(ctx, account, "ann", "hash")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, account, "ann", "hash")
	assert.Error(t, err, "user names are unique")
}

func tableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	require.NoError(t, err)
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		columns = append(columns, name)
	}
	require.NoError(t, rows.Err())
	return columns
}

func tableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	require.NoError(t, err)
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indexes = append(indexes, name)
	}
	require.NoError(t, rows.Err())
	return indexes
}
