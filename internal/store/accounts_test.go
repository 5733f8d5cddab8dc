package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupUser(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	account := createTestAccount(t, s, "acme")

	id, err := s.CreateUser(ctx, account, "ann", "$2a$hash")
	require.NoError(t, err)

	u, err := s.LookupUser(ctx, "ann")
	require.NoError(t, err)
	assert.Equal(t, User{ID: id, AccountID: account, Name: "ann", PasswordHash: "$2a$hash"}, u)

	_, err = s.LookupUser(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureAccount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.EnsureAccount(ctx, "acme")
	require.NoError(t, err)
	again, err := s.EnsureAccount(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := s.EnsureAccount(ctx, "globex")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = s.AccountByName(ctx, "initech")
	assert.ErrorIs(t, err, ErrNotFound)
}
