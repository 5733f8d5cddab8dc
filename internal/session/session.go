// Package session orchestrates one sync round trip:
//
//	Received -> Authenticated -> (Mutated) -> Resolved -> Responded
//
// A wrong protocol version or failed authentication ends the request in
// Rejected before the store is touched. A failed mutation does not: its
// message is carried in actionResult and deltas are still resolved.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/tablesync/internal/auth"
	"github.com/roach88/tablesync/internal/delta"
	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/mutation"
)

// State is a step of the session state machine.
type State int

const (
	StateReceived State = iota
	StateAuthenticated
	StateMutated
	StateResolved
	StateResponded
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateAuthenticated:
		return "authenticated"
	case StateMutated:
		return "mutated"
	case StateResolved:
		return "resolved"
	case StateResponded:
		return "responded"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Credentials is the scheme and opaque token from the transport.
type Credentials struct {
	Scheme string
	Token  string
}

// Authenticator resolves credentials to an account.
type Authenticator interface {
	Authenticate(ctx context.Context, scheme, token string) (ir.AccountID, error)
}

// Applier applies one client action.
type Applier interface {
	Apply(ctx context.Context, account ir.AccountID, action ir.Action) (mutation.Result, error)
}

// Resolver computes per-table deltas.
type Resolver interface {
	Resolve(ctx context.Context, account ir.AccountID, cursors map[string]ir.Cursor) (delta.Result, error)
}

// RequestIDGenerator names requests in logs.
type RequestIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 request ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Session handles sync requests. Safe for concurrent use.
type Session struct {
	auth     Authenticator
	applier  Applier
	resolver Resolver
	ids      RequestIDGenerator
	logger   *slog.Logger
	observe  func(requestID string, s State)
}

// Option configures a Session.
type Option func(*Session)

// WithRequestIDs replaces the UUIDv7 request id generator.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(s *Session) { s.ids = g }
}

// WithLogger sets the logger. nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers fn to be called on every state transition.
func WithObserver(fn func(requestID string, s State)) Option {
	return func(s *Session) { s.observe = fn }
}

// New creates a Session.
func New(a Authenticator, applier Applier, resolver Resolver, opts ...Option) *Session {
	s := &Session{
		auth:     a,
		applier:  applier,
		resolver: resolver,
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle runs one request. It returns either a response or a *Error.
func (s *Session) Handle(ctx context.Context, creds Credentials, req ir.Request) (*ir.Response, error) {
	requestID := s.ids.Generate()
	log := s.logger.With("request_id", requestID)
	s.enter(requestID, StateReceived)

	if req.Version != ir.ProtocolVersion {
		s.enter(requestID, StateRejected)
		log.Info("request rejected", "reason", "version", "version", req.Version)
		return nil, &Error{
			Kind:    KindVersionMismatch,
			Message: fmt.Sprintf("protocol version %d is not supported, reload the application", req.Version),
		}
	}

	account, err := s.auth.Authenticate(ctx, creds.Scheme, creds.Token)
	if err != nil {
		s.enter(requestID, StateRejected)
		if errors.Is(err, auth.ErrUnauthorized) {
			log.Info("request rejected", "reason", "unauthorized")
			return nil, &Error{Kind: KindUnauthorized, Message: "authentication failed"}
		}
		log.Error("authentication failed", "error", err)
		return nil, &Error{Kind: KindInternal, Message: "authentication unavailable", Err: err}
	}
	log = log.With("account", int64(account))
	s.enter(requestID, StateAuthenticated)

	resp := &ir.Response{Version: ir.ProtocolVersion}

	if req.Action != nil {
		res, err := s.applier.Apply(ctx, account, *req.Action)
		if err != nil {
			msg := actionResult(err)
			resp.ActionResult = &msg
			log.Warn("action failed",
				"verb", string(req.Action.Verb),
				"table", req.Action.Table,
				"kind", string(mutation.KindOf(err)),
				"error", err)
		} else {
			log.Info("action applied",
				"verb", string(res.Verb),
				"table", res.Table,
				"row", res.RowID,
				"log_id", res.LogID)
		}
		s.enter(requestID, StateMutated)
	}

	result, err := s.resolver.Resolve(ctx, account, req.Tables)
	if err != nil {
		s.enter(requestID, StateRejected)
		log.Error("delta resolution failed", "error", err)
		return nil, &Error{Kind: KindInternal, Message: "internal error", Err: err}
	}
	s.enter(requestID, StateResolved)

	resp.EOF = result.EOF
	resp.Tables = result.Tables

	s.enter(requestID, StateResponded)
	log.Debug("request complete", "tables", len(resp.Tables), "eof", resp.EOF)
	return resp, nil
}

func (s *Session) enter(requestID string, st State) {
	if s.observe != nil {
		s.observe(requestID, st)
	}
}

// actionResult is the client-visible text of a mutation failure.
func actionResult(err error) string {
	var me *mutation.Error
	if errors.As(err, &me) {
		return me.ClientMessage()
	}
	return string(mutation.KindStore) + ": internal error"
}
