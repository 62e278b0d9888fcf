package usecase

import (
	"context"

	"archer/internal/domain/entity"
)

// Principal is the authenticated caller of an account operation.
type Principal struct {
	UID     string
	IDToken string
}

// EnrollmentStep is the outcome of one enrollment action.
type EnrollmentStep struct {
	Enrollment *entity.Enrollment `json:"enrollment"`
	Session    *entity.Session    `json:"session,omitempty"` // Set when the provider issued fresh tokens.
	Notices    []entity.Notice    `json:"notices,omitempty"`
}

// StepUpChallenge is a second-factor code request issued against a resolver.
type StepUpChallenge struct {
	Resolver    entity.MFAResolver `json:"resolver"`
	Hint        entity.FactorHint  `json:"hint"`
	SessionInfo string             `json:"session_info"`
}

// EnrollmentInput starts binding a phone as a second factor.
type EnrollmentInput struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	DisplayName string `json:"display_name,omitempty" validate:"max=64"`
}

// MFAUsecase implements phone second-factor enrollment and step-up.
type MFAUsecase interface {
	// StartEnrollment checks freshness and email verification and sends a
	// code to the phone when both hold.
	StartEnrollment(ctx context.Context, p Principal, input EnrollmentInput) (*EnrollmentStep, error)

	// Reauthenticate re-enters the password and resumes the enrollment.
	Reauthenticate(ctx context.Context, p Principal, enrollmentID, password string) (*EnrollmentStep, error)

	// ResendVerificationEmail sends the email verification link again.
	ResendVerificationEmail(ctx context.Context, p Principal, enrollmentID string) (*EnrollmentStep, error)

	// RecheckEmailVerification reloads the identity and resumes when the
	// email is now verified.
	RecheckEmailVerification(ctx context.Context, p Principal, enrollmentID string) (*EnrollmentStep, error)

	// ConfirmEnrollment binds the phone with the received code.
	ConfirmEnrollment(ctx context.Context, p Principal, enrollmentID, code string) (*EnrollmentStep, error)

	// CancelEnrollment discards a pending enrollment.
	CancelEnrollment(ctx context.Context, p Principal, enrollmentID string) error

	// Unenroll withdraws every factor best-effort.
	Unenroll(ctx context.Context, p Principal) (*entity.UnenrollResult, error)

	// BeginStepUp selects the first hint and requests a code for it.
	BeginStepUp(ctx context.Context, resolver entity.MFAResolver) (*StepUpChallenge, error)

	// CompleteStepUp exchanges the code for a completed sign-in.
	CompleteStepUp(ctx context.Context, challenge *StepUpChallenge, code string) (*entity.Identity, error)
}
