package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockKeyRepo struct {
	byHash map[string]*APIKeyInfo
	err    error
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.byHash[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return info, nil
}

var testPepper = []byte("key-pepper")

func TestAuthenticate(t *testing.T) {
	hash := HashKey("secret-key", testPepper)
	repo := &mockKeyRepo{byHash: map[string]*APIKeyInfo{
		hash:        {ID: "k-1", KeyHash: hash, Name: "ops", Scopes: []string{ScopeAdmin}},
		"corrupted": {ID: "k-2", KeyHash: "zz"},
	}}
	a := NewAuthenticator(repo, testPepper)

	info, err := a.Authenticate(context.Background(), "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "k-1", info.ID)
	assert.True(t, info.HasScope(ScopeAdmin))
	assert.False(t, info.HasScope("billing"))

	_, err = a.Authenticate(context.Background(), "wrong-key")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = a.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewAuthenticator(repo, []byte("other")).Authenticate(context.Background(), "secret-key")
	require.ErrorIs(t, err, ErrUnauthorized, "pepper is part of the hash")
}

func TestAuthenticate_StoredHashMismatch(t *testing.T) {
	hash := HashKey("secret-key", testPepper)
	repo := &mockKeyRepo{byHash: map[string]*APIKeyInfo{
		hash: {ID: "k-1", KeyHash: HashKey("another", testPepper)},
	}}

	_, err := NewAuthenticator(repo, testPepper).Authenticate(context.Background(), "secret-key")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticate_StoreError(t *testing.T) {
	a := NewAuthenticator(&mockKeyRepo{err: errors.New("db down")}, testPepper)

	_, err := a.Authenticate(context.Background(), "secret-key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "find api key")
}

func TestKeyContext(t *testing.T) {
	assert.Nil(t, KeyFromContext(context.Background()))

	info := &APIKeyInfo{ID: "k-1"}
	assert.Same(t, info, KeyFromContext(WithKey(context.Background(), info)))
}
