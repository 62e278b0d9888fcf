package usecase

import (
	"context"
	"time"

	"archer/internal/domain/entity"
)

// ClientContext identifies the installation driving a flow.
type ClientContext struct {
	DeviceID   string `json:"device_id" validate:"required,max=128"`
	Descriptor string `json:"descriptor" validate:"max=256"`
	PushToken  string `json:"push_token,omitempty" validate:"max=4096"`
}

// FlowInput is the tagged payload a caller submits in one state.
type FlowInput interface {
	// Method names the sign-in method for logs and metrics.
	Method() string
	flowInput()
}

// PasswordSignIn submits credentials from LOGIN.
type PasswordSignIn struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SocialSignIn submits a provider token obtained inline by the client.
type SocialSignIn struct {
	ProviderID  string `json:"provider_id" validate:"required"`
	IDToken     string `json:"id_token" validate:"required_without=AccessToken"`
	AccessToken string `json:"access_token" validate:"required_without=IDToken"`
}

// SocialRedirect starts the redirect fallback of a social sign-in.
type SocialRedirect struct {
	ProviderID string `json:"provider_id" validate:"required"`
}

// Signup submits new-account fields from SIGNUP.
type Signup struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
}

// PasswordReset submits the email from FORGOT_PASSWORD.
type PasswordReset struct {
	Email string `json:"email" validate:"required,email"`
}

// PhoneNumber submits the number from PHONE_ENTRY.
type PhoneNumber struct {
	PhoneNumber    string `json:"phone_number" validate:"required,e164"`
	ChallengeToken string `json:"challenge_token,omitempty"` // Bot-check token forwarded to the provider.
}

// SMSCode submits the one-time code from SMS_VERIFY.
type SMSCode struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

// MFACode submits the second-factor code from MFA_VERIFY.
type MFACode struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

// CompleteProfile submits the fields required to create an account for a
// social identity that has none.
type CompleteProfile struct {
	Name        string            `json:"name" validate:"required,max=100"`
	DateOfBirth time.Time         `json:"date_of_birth" validate:"required"`
	Hobby       string            `json:"hobby,omitempty" validate:"max=200"`
	Phone       string            `json:"phone,omitempty" validate:"omitempty,e164"`
	BowType     string            `json:"bow_type,omitempty" validate:"max=50"`
	Level       string            `json:"level,omitempty" validate:"max=50"`
	SocialLinks map[string]string `json:"social_links,omitempty" validate:"max=10,dive,keys,max=30,endkeys,url"`
}

// Navigate is a user action that moves between views without submitting.
type Navigate struct {
	To entity.FlowView `json:"to" validate:"required"`
}

func (PasswordSignIn) Method() string  { return "password" }
func (SocialSignIn) Method() string    { return "social" }
func (SocialRedirect) Method() string  { return "social_redirect" }
func (Signup) Method() string          { return "signup" }
func (PasswordReset) Method() string   { return "password_reset" }
func (PhoneNumber) Method() string     { return "phone" }
func (SMSCode) Method() string         { return "phone" }
func (MFACode) Method() string         { return "second_factor" }
func (CompleteProfile) Method() string { return "complete_profile" }
func (Navigate) Method() string        { return "navigate" }

func (PasswordSignIn) flowInput()  {}
func (SocialSignIn) flowInput()    {}
func (SocialRedirect) flowInput()  {}
func (Signup) flowInput()          {}
func (PasswordReset) flowInput()   {}
func (PhoneNumber) flowInput()     {}
func (SMSCode) flowInput()         {}
func (MFACode) flowInput()         {}
func (CompleteProfile) flowInput() {}
func (Navigate) flowInput()        {}

// AuthResult is the exit of the state machine.
type AuthResult struct {
	Account *entity.Account `json:"account"`
	Session entity.Session  `json:"session"`
}

// FlowFailure is a recoverable error that keeps the flow in its state.
type FlowFailure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FlowStep is the outcome of one transition: either a continuation (State
// and Token) or an exit (Result).
type FlowStep struct {
	State       *entity.FlowState `json:"state,omitempty"`
	Token       string            `json:"token,omitempty"`
	Result      *AuthResult       `json:"result,omitempty"`
	Failure     *FlowFailure      `json:"failure,omitempty"`
	Notices     []entity.Notice   `json:"notices,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
}

// Done reports whether the step exits the state machine.
func (s *FlowStep) Done() bool {
	return s.Result != nil
}

// AuthFlowUsecase drives the authentication state machine. The state is
// owned by the caller and travels as the signed Token of each step.
type AuthFlowUsecase interface {
	// Start opens a flow in LOGIN.
	Start(ctx context.Context) (*FlowStep, error)

	// Advance submits input in the state carried by token.
	Advance(ctx context.Context, token string, client ClientContext, input FlowInput) (*FlowStep, error)

	// Abandon discards the flow and every secret retained for it.
	Abandon(ctx context.Context, token string) error

	// StoreRedirectResult completes a redirect sign-in from the provider
	// callback and parks the result for RecoverRedirect.
	StoreRedirectResult(ctx context.Context, flowID, callbackURL string) error

	// RecoverRedirect consumes a parked redirect result at most once and
	// feeds it through the social sign-in success path. A step without
	// Result or State change means nothing was pending.
	RecoverRedirect(ctx context.Context, token string, client ClientContext) (*FlowStep, error)
}
