// Package service defines interfaces for the external collaborators the
// account core depends on, keeping the domain free of vendor SDKs.
package service

import (
	"context"
	"time"

	"archer/internal/domain/entity"
)

// IdPCredential is what a social sign-in hands to the provider: either a
// token obtained inline by the client, or the redirect callback URL together
// with the session id returned by CreateAuthURI.
type IdPCredential struct {
	ProviderID  string // e.g. "google.com", "apple.com".
	IDToken     string // Inline: provider ID token.
	AccessToken string // Inline: provider access token, if the provider uses one.
	RequestURI  string // Redirect: full callback URL including the query.
	SessionID   string // Redirect: session id from CreateAuthURI.
}

// AuthURI is the start of a redirect sign-in.
type AuthURI struct {
	URL       string
	SessionID string
}

// IdentityRecord is the provider's current view of a signed-in identity.
type IdentityRecord struct {
	UID               string
	Email             string
	EmailVerified     bool
	PhoneNumber       string
	Factors           []entity.FactorHint
	LastLoginAt       time.Time
	PasswordUpdatedAt time.Time
}

// IdentityProvider is the client-side capability set of the identity
// platform. Calls that can require a second factor return a
// *errors.SecondFactorRequiredError from the domain errors package.
type IdentityProvider interface {
	// SignInWithPassword checks an email and password.
	SignInWithPassword(ctx context.Context, email, password string) (*entity.Identity, error)

	// CreateAccount registers a new email and password identity.
	CreateAccount(ctx context.Context, email, password, displayName string) (*entity.Identity, error)

	// SignInWithIdP exchanges a social credential for an identity.
	SignInWithIdP(ctx context.Context, cred IdPCredential) (*entity.Identity, error)

	// CreateAuthURI starts a redirect sign-in with providerID.
	CreateAuthURI(ctx context.Context, providerID, continueURI string) (*AuthURI, error)

	// SendPasswordResetEmail issues a reset message.
	SendPasswordResetEmail(ctx context.Context, email string) error

	// SendPhoneCode sends a one-time code and returns the verification id.
	SendPhoneCode(ctx context.Context, phoneNumber, challengeToken string) (string, error)

	// ConfirmPhoneCode resolves a pending phone sign-in.
	ConfirmPhoneCode(ctx context.Context, verificationID, code string) (*entity.Identity, error)

	// StartSecondFactorSignIn requests a code for one enrolled factor.
	StartSecondFactorSignIn(ctx context.Context, pendingCredential, enrollmentID string) (string, error)

	// FinalizeSecondFactorSignIn exchanges the code for a completed sign-in.
	FinalizeSecondFactorSignIn(ctx context.Context, pendingCredential, sessionInfo, code string) (*entity.Identity, error)

	// StartPhoneEnrollment sends a code to phoneNumber bound to the session.
	StartPhoneEnrollment(ctx context.Context, idToken, phoneNumber string) (string, error)

	// FinalizePhoneEnrollment binds the phone as a second factor.
	FinalizePhoneEnrollment(ctx context.Context, idToken, sessionInfo, code, displayName string) (*entity.Session, error)

	// WithdrawFactor removes one enrolled factor.
	WithdrawFactor(ctx context.Context, idToken, enrollmentID string) error

	// LookupIdentity reloads the identity behind idToken.
	LookupIdentity(ctx context.Context, idToken string) (*IdentityRecord, error)

	// SendEmailVerification sends a verification link to the identity's email.
	SendEmailVerification(ctx context.Context, idToken string) error
}
