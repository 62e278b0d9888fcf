package handler

import (
	"time"

	"archer/internal/domain/entity"
	"archer/internal/usecase"
)

// AccountResponse is the wire form of an account.
type AccountResponse struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Email               string          `json:"email,omitempty"`
	Phone               string          `json:"phone,omitempty"`
	DateOfBirth         *time.Time      `json:"date_of_birth,omitempty"`
	Age                 *int            `json:"age,omitempty"`
	Tier                entity.Tier     `json:"tier"`
	SubscriptionExpires *time.Time      `json:"subscription_expires,omitempty"`
	Usage               UsageResponse   `json:"usage"`
	Devices             []entity.Device `json:"devices"`
	Profile             ProfileResponse `json:"profile"`
	MFAEnabled          bool            `json:"mfa_enabled"`
	LoggedIn            bool            `json:"logged_in"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// UsageResponse reports quota consumption.
type UsageResponse struct {
	TokensUsed      int64        `json:"tokens_used"`
	TokenLimit      entity.Quota `json:"token_limit"`
	ImagesGenerated int64        `json:"images_generated"`
	ImageLimit      entity.Quota `json:"image_limit"`
	LastTokenRefill time.Time    `json:"last_token_refill"`
	LastImageRefill time.Time    `json:"last_image_refill"`
}

// ProfileResponse is the optional profile section.
type ProfileResponse struct {
	BowType     string            `json:"bow_type,omitempty"`
	Level       string            `json:"level,omitempty"`
	Hobby       string            `json:"hobby,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
}

func toAccountResponse(acc *entity.Account, now time.Time) *AccountResponse {
	if acc == nil {
		return nil
	}

	devices := acc.Devices
	if devices == nil {
		devices = []entity.Device{}
	}

	return &AccountResponse{
		ID:                  acc.ID,
		Name:                acc.Name,
		Email:               acc.Email,
		Phone:               acc.Phone,
		DateOfBirth:         acc.DateOfBirth,
		Age:                 acc.Age(now),
		Tier:                acc.Tier,
		SubscriptionExpires: acc.SubscriptionExpires,
		Usage: UsageResponse{
			TokensUsed:      acc.TokensUsed,
			TokenLimit:      acc.TokenLimit,
			ImagesGenerated: acc.ImagesGenerated,
			ImageLimit:      acc.Tier.Policy().ImageLimit,
			LastTokenRefill: acc.LastTokenRefill,
			LastImageRefill: acc.LastImageRefill,
		},
		Devices: devices,
		Profile: ProfileResponse{
			BowType:     acc.Profile.BowType,
			Level:       acc.Profile.Level,
			Hobby:       acc.Profile.Hobby,
			SocialLinks: acc.Profile.SocialLinks,
		},
		MFAEnabled: acc.MFAEnabled,
		LoggedIn:   acc.LoggedIn,
		CreatedAt:  acc.CreatedAt,
		UpdatedAt:  acc.UpdatedAt,
	}
}

// FlowStepResponse is the wire form of one auth flow transition.
type FlowStepResponse struct {
	Token       string               `json:"token,omitempty"`
	State       *entity.FlowState    `json:"state,omitempty"`
	Done        bool                 `json:"done"`
	Account     *AccountResponse     `json:"account,omitempty"`
	Session     *entity.Session      `json:"session,omitempty"`
	Failure     *usecase.FlowFailure `json:"failure,omitempty"`
	Notices     []entity.Notice      `json:"notices,omitempty"`
	RedirectURL string               `json:"redirect_url,omitempty"`
}

func toFlowStepResponse(step *usecase.FlowStep, now time.Time) *FlowStepResponse {
	resp := &FlowStepResponse{
		Token:       step.Token,
		State:       step.State,
		Done:        step.Done(),
		Failure:     step.Failure,
		Notices:     step.Notices,
		RedirectURL: step.RedirectURL,
	}
	if step.Result != nil {
		resp.Account = toAccountResponse(step.Result.Account, now)
		session := step.Result.Session
		resp.Session = &session
	}

	return resp
}

// EnrollmentResponse hides the provider session info and tokens.
type EnrollmentResponse struct {
	ID          string                 `json:"id"`
	PhoneNumber string                 `json:"phone_number"`
	DisplayName string                 `json:"display_name,omitempty"`
	Stage       entity.EnrollmentStage `json:"stage"`
	Session     *entity.Session        `json:"session,omitempty"`
	Notices     []entity.Notice        `json:"notices,omitempty"`
}

func toEnrollmentResponse(step *usecase.EnrollmentStep) *EnrollmentResponse {
	resp := &EnrollmentResponse{
		Session: step.Session,
		Notices: step.Notices,
	}
	if en := step.Enrollment; en != nil {
		resp.ID = en.ID
		resp.PhoneNumber = en.PhoneNumber
		resp.DisplayName = en.DisplayName
		resp.Stage = en.Stage
	}

	return resp
}

// UnenrollResponse reports per-factor outcomes.
type UnenrollResponse struct {
	Outcomes  []entity.FactorOutcome `json:"outcomes"`
	OutOfSync bool                   `json:"out_of_sync"`
}
