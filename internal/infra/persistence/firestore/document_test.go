package firestore

import (
	"testing"
	"time"

	"archer/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestAccountDocument_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	expires := now.Add(30 * 24 * time.Hour)
	acc := entity.NewAccount("uid", "Robin", "robin@example.com", now)
	acc.Tier = entity.TierPro
	acc.TokenLimit = entity.Unlimited
	acc.SubscriptionExpires = &expires
	acc.Devices = []entity.Device{{ID: "d1", Descriptor: "archerctl/linux", LastActive: now, PushToken: "tok"}}
	acc.Profile.SocialLinks = map[string]string{"x": "https://x.com/robin"}

	got := toAccountDocument(acc).toDomain("uid")

	assert.Equal(t, acc, got)
}

func TestMergeFields_LeavesEmptyIdentityFieldsOut(t *testing.T) {
	fields := mergeFields(&entity.Account{ID: "uid", Tier: entity.TierCharge, TokenLimit: 50000})

	assert.NotContains(t, fields, "name")
	assert.NotContains(t, fields, "email")
	assert.NotContains(t, fields, "createdAt")
	assert.Equal(t, "charge", fields["tier"])
	assert.Equal(t, int64(50000), fields["tokenLimit"])
}
