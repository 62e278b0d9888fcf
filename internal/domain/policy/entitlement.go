// Package policy holds the pure account rules: entitlement refill, device
// admission and rank derivation. Nothing here reads the clock or performs I/O;
// callers sample "now" once and pass it in.
package policy

import (
	"time"

	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/errors"
)

// RecomputeEntitlements applies expiry downgrade and the token and image
// refill windows. It returns acc itself and false when nothing fired,
// otherwise a modified copy and true.
func RecomputeEntitlements(acc *entity.Account, now time.Time) (*entity.Account, bool) {
	if acc == nil {
		return nil, false
	}

	var next *entity.Account
	mutable := func() *entity.Account {
		if next == nil {
			next = acc.Clone()
		}

		return next
	}
	cur := func() *entity.Account {
		if next != nil {
			return next
		}

		return acc
	}

	// Expiry downgrade runs first so the windows below use the Free row.
	if acc.Tier != entity.TierFree && acc.SubscriptionExpires != nil && now.After(*acc.SubscriptionExpires) {
		a := mutable()
		a.Tier = entity.TierFree
		a.TokenLimit = entity.TierFree.Policy().TokenLimit
		a.SubscriptionExpires = nil
		a.TokensUsed = 0
	}

	p := cur().Tier.Policy()

	if now.Sub(cur().LastTokenRefill) >= p.TokenWindow {
		a := mutable()
		a.TokensUsed = 0
		a.TokenLimit = p.TokenLimit
		a.LastTokenRefill = now
	}

	if now.Sub(cur().LastImageRefill) >= p.ImageWindow {
		a := mutable()
		a.ImagesGenerated = 0
		a.LastImageRefill = now
	}

	if next == nil {
		return acc, false
	}
	next.UpdatedAt = now

	return next, true
}

// ApplySubscription moves the account to tier. Paid tiers require an expiry
// in the future; Free clears it. The token limit follows the new baseline.
func ApplySubscription(acc *entity.Account, tier entity.Tier, expires *time.Time, now time.Time) (*entity.Account, error) {
	if !tier.IsValid() {
		return nil, domainerrors.ErrValidationFailed.WithDetails("unknown tier " + tier.String())
	}
	if tier.IsPaid() && (expires == nil || !expires.After(now)) {
		return nil, domainerrors.ErrValidationFailed.WithDetails("paid tiers need an expiry in the future")
	}

	next := acc.Clone()
	next.Tier = tier
	next.TokenLimit = tier.Policy().TokenLimit
	if tier.IsPaid() {
		exp := *expires
		next.SubscriptionExpires = &exp
	} else {
		next.SubscriptionExpires = nil
	}
	next.UpdatedAt = now

	return next, nil
}

// ConsumeTokens charges amount tokens against the current window.
func ConsumeTokens(acc *entity.Account, amount int64, now time.Time) (*entity.Account, error) {
	if amount <= 0 {
		return nil, domainerrors.ErrValidationFailed.WithDetails("amount must be positive")
	}
	if !acc.TokenLimit.Allows(acc.TokensUsed, amount) {
		return nil, errors.WithStack(domainerrors.ErrQuotaExceeded.WithDetails("tokens"))
	}

	next := acc.Clone()
	next.TokensUsed += amount
	next.UpdatedAt = now

	return next, nil
}

// ConsumeImage charges one generated image against the current window.
func ConsumeImage(acc *entity.Account, now time.Time) (*entity.Account, error) {
	if !acc.Tier.Policy().ImageLimit.Allows(acc.ImagesGenerated, 1) {
		return nil, errors.WithStack(domainerrors.ErrQuotaExceeded.WithDetails("images"))
	}

	next := acc.Clone()
	next.ImagesGenerated++
	next.UpdatedAt = now

	return next, nil
}
