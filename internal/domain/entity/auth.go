// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import "time"

// Identity is the result of a successful identity-provider sign-in.
type Identity struct {
	UID           string // The provider's stable uid; doubles as the Account id.
	Email         string // Email known to the provider, if any.
	DisplayName   string // Display name known to the provider, if any.
	PhoneNumber   string // Verified phone number for phone sign-ins.
	EmailVerified bool   // Whether the provider considers the email verified.
	ProviderID    string // e.g. "password", "google.com", "phone".
	IsNewUser     bool   // Set when the provider created the identity during this call.
	Session       Session
}

// Session holds the provider tokens of a signed-in identity.
type Session struct {
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// FactorHint describes one enrolled second factor without revealing it.
type FactorHint struct {
	EnrollmentID string `json:"enrollment_id"`
	DisplayName  string `json:"display_name,omitempty"`
	PhoneHint    string `json:"phone_hint,omitempty"` // Masked phone number, e.g. "+*******1234".
}

// MFAResolver is the provider-issued handle of a pending step-up challenge.
// The pending credential is a secret and must stay server-side.
type MFAResolver struct {
	PendingCredential string       // Opaque provider handle exchanged with a code to finish sign-in.
	Hints             []FactorHint // Enrolled factors, in provider order.
}

// ChallengeKind tells which pending step a Challenge belongs to.
type ChallengeKind string

const (
	ChallengePhoneSignIn     ChallengeKind = "phone_sign_in"
	ChallengeSecondFactor    ChallengeKind = "second_factor"
	ChallengeProfile         ChallengeKind = "complete_profile"
	ChallengeRedirectResult  ChallengeKind = "redirect_result"
	ChallengeRedirectPending ChallengeKind = "redirect_pending"
)

// Challenge is the transient, server-side state of an in-flight flow step.
// It is keyed by the flow id and never leaves the server.
type Challenge struct {
	Kind           ChallengeKind `json:"kind"`
	VerificationID string        `json:"verification_id,omitempty"` // Phone sign-in session info.
	Resolver       *MFAResolver  `json:"resolver,omitempty"`        // Step-up resolver.
	MFASessionInfo string        `json:"mfa_session_info,omitempty"`
	Identity       *Identity     `json:"identity,omitempty"` // Signed-in identity awaiting profile or recovery.
	Provider       string        `json:"provider,omitempty"`
	SessionID      string        `json:"session_id,omitempty"` // Provider auth-uri session for redirects.
	CreatedAt      time.Time     `json:"created_at"`
}
