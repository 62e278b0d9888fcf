package usecase

import (
	"context"
	"time"

	"archer/internal/domain/entity"
)

// ProfileInput carries a partial profile edit; nil fields are left alone.
type ProfileInput struct {
	Name        *string           `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	DateOfBirth *time.Time        `json:"date_of_birth,omitempty"`
	Phone       *string           `json:"phone,omitempty" validate:"omitempty,e164"`
	BowType     *string           `json:"bow_type,omitempty" validate:"omitempty,max=50"`
	Level       *string           `json:"level,omitempty" validate:"omitempty,max=50"`
	Hobby       *string           `json:"hobby,omitempty" validate:"omitempty,max=200"`
	SocialLinks map[string]string `json:"social_links,omitempty" validate:"omitempty,max=10,dive,keys,max=30,endkeys,url"`
}

// SubscriptionInput moves an account to a tier.
type SubscriptionInput struct {
	Tier      entity.Tier `json:"tier" validate:"required,oneof=free charge pro ultra"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// AccountUsecase covers the authenticated account lifecycle.
type AccountUsecase interface {
	// GetAccount returns the account after an app-resume entitlement refill,
	// persisting only when the refill changed something.
	GetAccount(ctx context.Context, uid string) (*entity.Account, error)

	// UpdateProfile applies a partial profile edit.
	UpdateProfile(ctx context.Context, uid string, input ProfileInput) (*entity.Account, error)

	// ListDevices returns the registered devices.
	ListDevices(ctx context.Context, uid string) ([]entity.Device, error)

	// RemoveDevice drops one device from the list.
	RemoveDevice(ctx context.Context, uid, deviceID string) (*entity.Account, error)

	// ConsumeTokens charges chat tokens after refilling.
	ConsumeTokens(ctx context.Context, uid string, amount int64) (*entity.Account, error)

	// RecordImageGeneration charges one generated image after refilling.
	RecordImageGeneration(ctx context.Context, uid string) (*entity.Account, error)

	// ChangeSubscription moves the account to another tier.
	ChangeSubscription(ctx context.Context, uid string, input SubscriptionInput) (*entity.Account, error)

	// SignOut clears the logged-in flag and revokes provider sessions.
	SignOut(ctx context.Context, uid string) error

	// DeleteAccount removes a Free account, its history and its identity.
	DeleteAccount(ctx context.Context, uid string) error
}
