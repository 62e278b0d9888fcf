package entity

import (
	"time"

	"github.com/google/uuid"
)

// FlowView is one state of the authentication state machine.
type FlowView string

const (
	ViewLogin           FlowView = "LOGIN"
	ViewSignup          FlowView = "SIGNUP"
	ViewForgotPassword  FlowView = "FORGOT_PASSWORD"
	ViewPhoneEntry      FlowView = "PHONE_ENTRY"
	ViewSMSVerify       FlowView = "SMS_VERIFY"
	ViewMFAVerify       FlowView = "MFA_VERIFY"
	ViewCompleteProfile FlowView = "COMPLETE_PROFILE"
)

// IsValid checks if the FlowView is a valid value.
func (v FlowView) IsValid() bool {
	switch v {
	case ViewLogin, ViewSignup, ViewForgotPassword, ViewPhoneEntry,
		ViewSMSVerify, ViewMFAVerify, ViewCompleteProfile:
		return true
	default:
		return false
	}
}

// HoldsChallenge reports whether the view has server-side challenge state.
func (v FlowView) HoldsChallenge() bool {
	return v == ViewSMSVerify || v == ViewMFAVerify || v == ViewCompleteProfile
}

// FlowState is the explicit value of the state machine passed by the caller
// into every step and returned as the continuation. It carries no secrets.
type FlowState struct {
	ID          uuid.UUID    `json:"id"`
	View        FlowView     `json:"view"`
	Email       string       `json:"email,omitempty"`        // Prefill for LOGIN and FORGOT_PASSWORD.
	PhoneNumber string       `json:"phone_number,omitempty"` // Number the SMS code was sent to.
	Hints       []FactorHint `json:"hints,omitempty"`        // Factor shown on MFA_VERIFY.
	DisplayName string       `json:"display_name,omitempty"` // Prefill for COMPLETE_PROFILE.
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Severity classifies a user-visible notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a user-visible side effect of a step such as "code sent".
type Notice struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}
