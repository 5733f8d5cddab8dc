package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablesync/internal/store"
	"github.com/roach88/tablesync/internal/testutil"
)

func TestAuthenticate(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	account := testutil.NewAccount(t, s, "acme")

	hash, err := HashPassword("s3cret:with colon&amp")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, account, "ann@example.com", hash)
	require.NoError(t, err)

	a := NewAuthenticator(s)

	got, err := a.Authenticate(ctx, "Basic", BasicToken("ann@example.com", "s3cret:with colon&amp"))
	require.NoError(t, err)
	assert.Equal(t, account, got)

	got, err = a.Authenticate(ctx, "basic", BasicToken("ann@example.com", "s3cret:with colon&amp"))
	require.NoError(t, err, "scheme is case-insensitive")
	assert.Equal(t, account, got)

	failures := map[string][2]string{
		"wrong password": {"Basic", BasicToken("ann@example.com", "nope")},
		"unknown user":   {"Basic", BasicToken("bob", "s3cret")},
		"bearer scheme":  {"Bearer", BasicToken("ann@example.com", "s3cret:with colon&amp")},
		"not base64":     {"Basic", "%%%"},
		"no separator":   {"Basic", base64.StdEncoding.EncodeToString([]byte("ann"))},
		"empty user":     {"Basic", BasicToken("", "x")},
	}
	for name, creds := range failures {
		_, err := a.Authenticate(ctx, creds[0], creds[1])
		assert.ErrorIs(t, err, ErrUnauthorized, name)
	}
}

func TestAuthenticate_PlainPartsAreAccepted(t *testing.T) {
	s := testutil.NewStore(t)
	ctx := context.Background()
	account := testutil.NewAccount(t, s, "acme")
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, account, "ann", hash)
	require.NoError(t, err)

	token := base64.StdEncoding.EncodeToString([]byte("ann:pw"))
	got, err := NewAuthenticator(s).Authenticate(ctx, SchemeBasic, token)
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

type failingLookup struct{}

func (failingLookup) LookupUser(context.Context, string) (store.User, error) {
	return store.User{}, errors.New("disk on fire")
}

func TestAuthenticate_StoreErrorIsNotUnauthorized(t *testing.T) {
	_, err := NewAuthenticator(failingLookup{}).Authenticate(context.Background(), SchemeBasic, BasicToken("ann", "pw"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestParseAuthorization(t *testing.T) {
	scheme, token, ok := ParseAuthorization("Basic  YWJjOmRlZg== ")
	require.True(t, ok)
	assert.Equal(t, "Basic", scheme)
	assert.Equal(t, "YWJjOmRlZg==", token)

	_, _, ok = ParseAuthorization("")
	assert.False(t, ok)
	_, _, ok = ParseAuthorization("Basic")
	assert.False(t, ok)
}
