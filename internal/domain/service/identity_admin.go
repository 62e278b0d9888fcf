package service

import (
	"context"
	"time"
)

// TokenClaims is what the server learns from a verified ID token.
type TokenClaims struct {
	UID      string
	Email    string
	AuthTime time.Time
	// Admin is set by the "admin" custom claim on operator accounts.
	Admin bool
}

// IdentityAdmin is the privileged capability set used by the server.
type IdentityAdmin interface {
	// VerifyIDToken validates a session token and returns its claims.
	VerifyIDToken(ctx context.Context, idToken string) (*TokenClaims, error)

	// RevokeSessions signs the identity out everywhere.
	RevokeSessions(ctx context.Context, uid string) error

	// DeleteIdentity removes the identity from the provider.
	DeleteIdentity(ctx context.Context, uid string) error
}
