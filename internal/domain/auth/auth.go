// Package auth defines the identity model supplied by the API key collaborator.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role determines which API surfaces an identity may reach.
type Role string

const (
	// RoleShopper may browse the catalog and place orders.
	RoleShopper Role = "shopper"
	// RoleAdmin additionally manages coupons and order status.
	RoleAdmin Role = "admin"
)

var (
	// ErrUnauthorized is returned when no valid credential accompanies a request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid identity lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	UserID string
	Name   string
	Role   Role
}

// APIKeyInfo holds the stored credential data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Role    Role
}

// Repository provides lookup of active API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type identityKey struct{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity resolved by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
