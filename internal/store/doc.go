// Package store provides SQLite-backed durable storage for synchronized
// tables and their change logs.
//
// The schema holds:
//   - account: tenancy boundary for every other row
//   - user: credentials, each bound to one account
//   - erase: deletion log
//   - modify: modification log
//   - branch: client data
//
// # Statements
//
// Dynamic statements are built as queryir values and compiled by querysql;
// Exec, Query and Scalar accept a Querier so the same code runs against the
// database or an open transaction. InTx wraps BeginTx with a deferred
// Rollback and commits only on success.
//
// # Connection
//
// One pooled connection with journal_mode=WAL, synchronous=NORMAL,
// busy_timeout=5000 and foreign_keys=ON. Migrations are indexed by
// PRAGMA user_version.
package store
