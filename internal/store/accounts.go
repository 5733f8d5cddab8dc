package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tablesync/internal/ir"
)

// User is one row of the user table.
type User struct {
	ID           int64
	AccountID    ir.AccountID
	Name         string
	PasswordHash string
}

// CreateAccount inserts an account and returns its id.
func (s *Store) CreateAccount(ctx context.Context, name string) (ir.AccountID, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO account (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create account: last insert id: %w", err)
	}
	return ir.AccountID(id), nil
}

// AccountByName returns the id of the named account.
func (s *Store) AccountByName(ctx context.Context, name string) (ir.AccountID, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM account WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("account by name: %w", err)
	}
	return ir.AccountID(id), nil
}

// EnsureAccount returns the named account, creating it if needed.
func (s *Store) EnsureAccount(ctx context.Context, name string) (ir.AccountID, error) {
	id, err := s.AccountByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return s.CreateAccount(ctx, name)
	}
	return id, err
}

// CreateUser inserts a user. passwordHash must already be hashed.
func (s *Store) CreateUser(ctx context.Context, account ir.AccountID, name, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user (idAccount, name, password) VALUES (?, ?, ?)`,
		int64(account), name, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user: last insert id: %w", err)
	}
	return id, nil
}

// LookupUser returns the named user or ErrNotFound.
func (s *Store) LookupUser(ctx context.Context, name string) (User, error) {
	var u User
	var account int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, idAccount, name, password FROM user WHERE name = ?`, name,
	).Scan(&u.ID, &account, &u.Name, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	u.AccountID = ir.AccountID(account)
	return u, nil
}

// CountRows returns the number of rows an account owns in table. table must
// be a registry-checked identifier.
func (s *Store) CountRows(ctx context.Context, account ir.AccountID, table string) (int64, error) {
	return Scalar(ctx, s.db, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE idAccount = ?", table), int64(account))
}
