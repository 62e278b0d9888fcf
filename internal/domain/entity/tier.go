package entity

import (
	"encoding/json"
	"strconv"
	"time"

	"archer/internal/errors"
)

// Tier is the closed set of subscription tiers.
type Tier string

const (
	// TierFree is the default tier every account starts on.
	TierFree Tier = "free"
	// TierCharge is the paid mid tier.
	TierCharge Tier = "charge"
	// TierPro is a top tier with unlimited tokens.
	TierPro Tier = "pro"
	// TierUltra is the top tier with unlimited tokens and images.
	TierUltra Tier = "ultra"
)

// Quota is a usage limit where Unlimited is a sentinel for "no cap".
type Quota int64

// Unlimited marks a quota without a cap.
const Unlimited Quota = -1

// IsUnlimited reports whether the quota has no cap.
func (q Quota) IsUnlimited() bool {
	return q == Unlimited
}

// Allows reports whether used+amount stays within the quota.
func (q Quota) Allows(used, amount int64) bool {
	return q.IsUnlimited() || used+amount <= int64(q)
}

// String renders the quota for logs.
func (q Quota) String() string {
	if q.IsUnlimited() {
		return "unlimited"
	}

	return strconv.FormatInt(int64(q), 10)
}

// MarshalJSON renders Unlimited as the string "unlimited".
func (q Quota) MarshalJSON() ([]byte, error) {
	if q.IsUnlimited() {
		return []byte(`"unlimited"`), nil
	}

	return []byte(strconv.FormatInt(int64(q), 10)), nil
}

// UnmarshalJSON accepts either an integer or the string "unlimited".
func (q *Quota) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "unlimited" {
			return errors.Errorf("invalid quota %q", s)
		}
		*q = Unlimited

		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*q = Quota(n)

	return nil
}

// TierPolicy is the associated-value row for one tier.
type TierPolicy struct {
	TokenLimit  Quota         // Token baseline restored on each refill.
	ImageLimit  Quota         // Images allowed per refill window.
	TokenWindow time.Duration // Elapsed time after which tokens refill.
	ImageWindow time.Duration // Elapsed time after which images refill.
}

const day = 24 * time.Hour

var tierPolicies = map[Tier]TierPolicy{
	TierFree:   {TokenLimit: 5_000, ImageLimit: 10, TokenWindow: 3 * day, ImageWindow: 7 * day},
	TierCharge: {TokenLimit: 50_000, ImageLimit: 50, TokenWindow: day, ImageWindow: day},
	TierPro:    {TokenLimit: Unlimited, ImageLimit: 200, TokenWindow: day, ImageWindow: day},
	TierUltra:  {TokenLimit: Unlimited, ImageLimit: Unlimited, TokenWindow: day, ImageWindow: day},
}

// Policy returns the tier's limits and refill windows. Unknown values fall
// back to the Free row.
func (t Tier) Policy() TierPolicy {
	if p, ok := tierPolicies[t]; ok {
		return p
	}

	return tierPolicies[TierFree]
}

// String returns the string representation of the Tier.
func (t Tier) String() string {
	return string(t)
}

// IsValid checks if the Tier is a valid value.
func (t Tier) IsValid() bool {
	_, ok := tierPolicies[t]

	return ok
}

// IsPaid reports whether the tier carries a subscription expiry.
func (t Tier) IsPaid() bool {
	return t.IsValid() && t != TierFree
}
