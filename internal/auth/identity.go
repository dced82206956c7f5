// Package auth provides API key issuance, validation, and the HTTP
// middleware that resolves a request's identity. A request is either
// verified (a stored key matched the presented secret) or carries the
// default identity (no credential presented); the two cases are modeled as
// an explicit variant rather than a nullable key threaded through handlers.
package auth

import (
	"context"

	"shortener/internal/models"
)

// Identity is the resolved caller of a request: either a verified API key
// or the default identity used when no credential is presented. The
// default identity is exempt from quota in the current deployment phase.
type Identity struct {
	key *models.APIKey
}

// Verified returns an identity backed by a validated API key.
func Verified(key *models.APIKey) Identity {
	return Identity{key: key}
}

// DefaultIdentity returns the identity for requests without a credential.
func DefaultIdentity() Identity {
	return Identity{}
}

// IsVerified reports whether the identity is backed by an API key.
func (i Identity) IsVerified() bool {
	return i.key != nil
}

// Key returns the backing API key, or nil for the default identity.
func (i Identity) Key() *models.APIKey {
	return i.key
}

type contextKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IdentityFrom extracts the identity from a context. Requests that did not
// pass through the auth middleware resolve to the default identity.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return DefaultIdentity()
}
