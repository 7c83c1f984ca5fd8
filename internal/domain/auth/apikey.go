package auth

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// ScopeAdmin grants access to the admin API.
const ScopeAdmin = "admin"

// ErrKeyNotFound is returned by a Repository when no active key has the hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key was granted scope.
func (i *APIKeyInfo) HasScope(scope string) bool {
	return slices.Contains(i.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type keyCtx struct{}

// WithKey returns a copy of ctx carrying the authenticated key.
func WithKey(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, keyCtx{}, info)
}

// KeyFromContext returns the key stored by WithKey, or nil.
func KeyFromContext(ctx context.Context) *APIKeyInfo {
	info, _ := ctx.Value(keyCtx{}).(*APIKeyInfo)
	return info
}
