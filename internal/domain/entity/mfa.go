package entity

import "time"

// EnrollmentStage is the position of a phone enrollment.
type EnrollmentStage string

const (
	// StageAwaitingReauth means the session is too old and a password is needed.
	StageAwaitingReauth EnrollmentStage = "awaiting_reauthentication"
	// StageAwaitingEmailVerification means the email must be verified first.
	StageAwaitingEmailVerification EnrollmentStage = "awaiting_email_verification"
	// StageCodeSent means a code went to the phone and confirmation is pending.
	StageCodeSent EnrollmentStage = "code_sent"
	// StageEnrolled means the phone is bound as a second factor.
	StageEnrolled EnrollmentStage = "enrolled"
)

// Enrollment is the transient state of binding a phone as a second factor.
type Enrollment struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	PhoneNumber string          `json:"phone_number"`
	DisplayName string          `json:"display_name,omitempty"`
	Stage       EnrollmentStage `json:"stage"`
	SessionInfo string          `json:"session_info,omitempty"` // Provider verification id.
	IDToken     string          `json:"id_token,omitempty"`     // Freshest session token for the provider calls.
	CreatedAt   time.Time       `json:"created_at"`
}

// FactorOutcome is the per-factor result of an unenrollment.
type FactorOutcome struct {
	EnrollmentID string `json:"enrollment_id"`
	Removed      bool   `json:"removed"`
	Error        string `json:"error,omitempty"`
}

// UnenrollResult aggregates the best-effort removal of every factor.
type UnenrollResult struct {
	Outcomes []FactorOutcome `json:"outcomes"`
}

// OutOfSync reports whether at least one factor could not be removed, so the
// local toggle and the provider may disagree.
func (r UnenrollResult) OutOfSync() bool {
	for _, o := range r.Outcomes {
		if !o.Removed {
			return true
		}
	}

	return false
}
