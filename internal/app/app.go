// Package app wires the store, registry, applier, resolver and
// authenticator into a session.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tablesync/internal/auth"
	"github.com/roach88/tablesync/internal/delta"
	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/mutation"
	"github.com/roach88/tablesync/internal/registry"
	"github.com/roach88/tablesync/internal/session"
	"github.com/roach88/tablesync/internal/store"
)

// Options configures NewSession. Zero values pick defaults.
type Options struct {
	PageSize    int
	Parallelism int
	Registry    *registry.Registry
	Logger      *slog.Logger
	RequestIDs  session.RequestIDGenerator
	Observer    func(requestID string, s session.State)
}

// NewSession builds a session over s.
func NewSession(s *store.Store, opts Options) (*session.Session, error) {
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resolverOpts := []delta.Option{delta.WithLogger(logger), delta.WithParallelism(opts.Parallelism)}
	if opts.PageSize != 0 {
		resolverOpts = append(resolverOpts, delta.WithPageSize(opts.PageSize))
	}
	resolver, err := delta.NewResolver(s, reg, resolverOpts...)
	if err != nil {
		return nil, fmt.Errorf("build resolver: %w", err)
	}

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if opts.RequestIDs != nil {
		sessionOpts = append(sessionOpts, session.WithRequestIDs(opts.RequestIDs))
	}
	if opts.Observer != nil {
		sessionOpts = append(sessionOpts, session.WithObserver(opts.Observer))
	}

	return session.New(
		auth.NewAuthenticator(s),
		mutation.NewApplier(s, reg, logger),
		resolver,
		sessionOpts...,
	), nil
}

// AddUser creates user with password under accountName, creating the
// account if needed.
func AddUser(ctx context.Context, s *store.Store, accountName, user, password string) (ir.AccountID, error) {
	if user == "" {
		return 0, fmt.Errorf("add user: empty user name")
	}
	account, err := s.EnsureAccount(ctx, accountName)
	if err != nil {
		return 0, fmt.Errorf("add user: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("add user: %w", err)
	}
	if _, err := s.CreateUser(ctx, account, user, hash); err != nil {
		return 0, fmt.Errorf("add user: %w", err)
	}
	return account, nil
}
