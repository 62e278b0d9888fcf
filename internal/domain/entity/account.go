// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"maps"
	"slices"
	"time"
)

// Account is the durable identity and entitlement record for one user.
// It is keyed by the identity provider's uid.
type Account struct {
	ID                  string     // The identity provider's stable uid for this user.
	Name                string     // The user's display name.
	Email               string     // The user's primary email; empty for phone-only identities.
	DateOfBirth         *time.Time // Optional date of birth, used to derive Age.
	Phone               string     // Optional phone number in E.164 form.
	Tier                Tier       // Current subscription tier.
	TokensUsed          int64      // Chat tokens consumed since the last token refill.
	TokenLimit          Quota      // Chat tokens available per refill window.
	ImagesGenerated     int64      // Images generated since the last image refill.
	LastTokenRefill     time.Time  // When the token counter was last reset.
	LastImageRefill     time.Time  // When the image counter was last reset.
	SubscriptionExpires *time.Time // Expiry of a paid tier; nil exactly when Tier is Free.
	Devices             []Device   // Devices authorized for this account, at most MaxDevices.
	Profile             Profile    // Optional profile fields.
	MFAEnabled          bool       // Whether a phone second factor is enrolled.
	LoggedIn            bool       // Whether a session is currently signed in.
	CreatedAt           time.Time  // Timestamp of when this account was created.
	UpdatedAt           time.Time  // Timestamp of the last modification.
}

// Profile holds optional, user-editable fields.
type Profile struct {
	BowType     string            // e.g. "recurve", "compound".
	Level       string            // Self-declared skill level.
	Hobby       string            // Free text.
	SocialLinks map[string]string // Network name to profile URL.
}

// NewAccount seeds a record for an identity that has none yet: Free tier,
// zero usage and both refill timestamps at now.
func NewAccount(id, name, email string, now time.Time) *Account {
	return &Account{
		ID:              id,
		Name:            name,
		Email:           email,
		Tier:            TierFree,
		TokenLimit:      TierFree.Policy().TokenLimit,
		LastTokenRefill: now,
		LastImageRefill: now,
		Devices:         []Device{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Age returns the whole years between the date of birth and now, or nil
// when no date of birth is on record.
func (a *Account) Age(now time.Time) *int {
	if a.DateOfBirth == nil {
		return nil
	}

	dob := a.DateOfBirth.UTC()
	now = now.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}

	return &age
}

// HasDevice reports whether deviceID is registered on the account.
func (a *Account) HasDevice(deviceID string) bool {
	return slices.ContainsFunc(a.Devices, func(d Device) bool { return d.ID == deviceID })
}

// PushTokens returns the push tokens of every registered device that has one.
func (a *Account) PushTokens() []string {
	tokens := make([]string, 0, len(a.Devices))
	for _, d := range a.Devices {
		if d.PushToken != "" {
			tokens = append(tokens, d.PushToken)
		}
	}

	return tokens
}

// Clone returns a deep copy so that callers can mutate it without touching
// the original.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}

	c := *a
	if a.DateOfBirth != nil {
		dob := *a.DateOfBirth
		c.DateOfBirth = &dob
	}
	if a.SubscriptionExpires != nil {
		exp := *a.SubscriptionExpires
		c.SubscriptionExpires = &exp
	}
	c.Devices = slices.Clone(a.Devices)
	if c.Devices == nil {
		c.Devices = []Device{}
	}
	c.Profile.SocialLinks = maps.Clone(a.Profile.SocialLinks)

	return &c
}

// MergeOnto overlays a onto existing the way a partial document write does:
// empty identity fields and a missing creation time keep the stored value.
// The result is a fresh copy.
func (a *Account) MergeOnto(existing *Account) *Account {
	next := a.Clone()
	if existing == nil {
		return next
	}

	if next.Name == "" {
		next.Name = existing.Name
	}
	if next.Email == "" {
		next.Email = existing.Email
	}
	if next.Phone == "" {
		next.Phone = existing.Phone
	}
	if next.DateOfBirth == nil && existing.DateOfBirth != nil {
		dob := *existing.DateOfBirth
		next.DateOfBirth = &dob
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = existing.CreatedAt
	}

	return next
}
