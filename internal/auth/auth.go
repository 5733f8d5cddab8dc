// Package auth resolves request credentials to an account.
//
// Only the Basic scheme is supported: base64("user:password") where each
// part may additionally be URL-encoded. Passwords are stored as bcrypt
// hashes in the user table.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tablesync/internal/ir"
	"github.com/roach88/tablesync/internal/store"
)

// SchemeBasic is the only supported authorization scheme.
const SchemeBasic = "Basic"

// ErrUnauthorized is returned for every authentication failure. Callers are
// not told which part was wrong.
var ErrUnauthorized = errors.New("unauthorized")

// UserLookup finds a user by name. *store.Store implements it.
type UserLookup interface {
	LookupUser(ctx context.Context, name string) (store.User, error)
}

// Authenticator verifies credentials against a user table.
type Authenticator struct {
	users UserLookup
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users UserLookup) *Authenticator {
	return &Authenticator{users: users}
}

// Authenticate resolves (scheme, token) to the owning account.
func (a *Authenticator) Authenticate(ctx context.Context, scheme, token string) (ir.AccountID, error) {
	if !strings.EqualFold(scheme, SchemeBasic) {
		return 0, ErrUnauthorized
	}

	user, password, err := decodeBasic(token)
	if err != nil {
		return 0, ErrUnauthorized
	}

	u, err := a.users.LookupUser(ctx, user)
	if errors.Is(err, store.ErrNotFound) {
		// Burn comparable time so unknown users are not distinguishable.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return 0, ErrUnauthorized
	}
	if err != nil {
		return 0, fmt.Errorf("authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return 0, ErrUnauthorized
	}
	return u.AccountID, nil
}

// ParseAuthorization splits an Authorization header into scheme and token.
func ParseAuthorization(header string) (scheme, token string, ok bool) {
	scheme, token, ok = strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme == "" {
		return "", "", false
	}
	return scheme, strings.TrimSpace(token), true
}

// BasicToken builds the token a client sends for user and password.
func BasicToken(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(url.QueryEscape(user) + ":" + url.QueryEscape(password)))
}

// HashPassword returns the bcrypt hash stored in the user table.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func decodeBasic(token string) (user, password string, err error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", err
	}
	u, p, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", errors.New("missing separator")
	}
	if user, err = url.QueryUnescape(u); err != nil {
		return "", "", err
	}
	if password, err = url.QueryUnescape(p); err != nil {
		return "", "", err
	}
	if user == "" {
		return "", "", errors.New("empty user")
	}
	return user, password, nil
}

// dummyHash is compared against for unknown users.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tablesync-unknown-user"), bcrypt.DefaultCost)
