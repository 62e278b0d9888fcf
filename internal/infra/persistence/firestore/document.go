package firestore

import (
	"time"

	"archer/internal/domain/entity"
)

const (
	accountsCollection = "users"
	scoresCollection   = "scores"
)

// accountDocument is the stored shape of users/{uid}.
type accountDocument struct {
	Name                string           `firestore:"name"`
	Email               string           `firestore:"email"`
	DateOfBirth         *time.Time       `firestore:"dateOfBirth"`
	Phone               string           `firestore:"phone"`
	Tier                string           `firestore:"tier"`
	TokensUsed          int64            `firestore:"tokensUsed"`
	TokenLimit          int64            `firestore:"tokenLimit"`
	ImagesGenerated     int64            `firestore:"imagesGenerated"`
	LastTokenRefill     time.Time        `firestore:"lastTokenRefill"`
	LastImageRefill     time.Time        `firestore:"lastImageRefill"`
	SubscriptionExpires *time.Time       `firestore:"subscriptionExpires"`
	Devices             []deviceDocument `firestore:"devices"`
	Profile             profileDocument  `firestore:"profile"`
	MFAEnabled          bool             `firestore:"mfaEnabled"`
	LoggedIn            bool             `firestore:"loggedIn"`
	CreatedAt           time.Time        `firestore:"createdAt"`
	UpdatedAt           time.Time        `firestore:"updatedAt"`
}

type deviceDocument struct {
	ID         string    `firestore:"id"`
	Descriptor string    `firestore:"descriptor"`
	LastActive time.Time `firestore:"lastActive"`
	PushToken  string    `firestore:"pushToken"`
}

type profileDocument struct {
	BowType     string            `firestore:"bowType"`
	Level       string            `firestore:"level"`
	Hobby       string            `firestore:"hobby"`
	SocialLinks map[string]string `firestore:"socialLinks"`
}

// scoreDocument is the stored shape of users/{uid}/scores/{id}. Seq keeps
// append order independent of clock skew.
type scoreDocument struct {
	Seq        int64     `firestore:"seq"`
	Score      float64   `firestore:"score"`
	Label      string    `firestore:"label"`
	RecordedAt time.Time `firestore:"recordedAt"`
}

func toAccountDocument(acc *entity.Account) accountDocument {
	devices := make([]deviceDocument, 0, len(acc.Devices))
	for _, d := range acc.Devices {
		devices = append(devices, deviceDocument(d))
	}

	return accountDocument{
		Name:                acc.Name,
		Email:               acc.Email,
		DateOfBirth:         acc.DateOfBirth,
		Phone:               acc.Phone,
		Tier:                string(acc.Tier),
		TokensUsed:          acc.TokensUsed,
		TokenLimit:          int64(acc.TokenLimit),
		ImagesGenerated:     acc.ImagesGenerated,
		LastTokenRefill:     acc.LastTokenRefill,
		LastImageRefill:     acc.LastImageRefill,
		SubscriptionExpires: acc.SubscriptionExpires,
		Devices:             devices,
		Profile:             profileDocument(acc.Profile),
		MFAEnabled:          acc.MFAEnabled,
		LoggedIn:            acc.LoggedIn,
		CreatedAt:           acc.CreatedAt,
		UpdatedAt:           acc.UpdatedAt,
	}
}

func (d accountDocument) toDomain(id string) *entity.Account {
	devices := make([]entity.Device, 0, len(d.Devices))
	for _, dev := range d.Devices {
		devices = append(devices, entity.Device(dev))
	}

	return &entity.Account{
		ID:                  id,
		Name:                d.Name,
		Email:               d.Email,
		DateOfBirth:         d.DateOfBirth,
		Phone:               d.Phone,
		Tier:                entity.Tier(d.Tier),
		TokensUsed:          d.TokensUsed,
		TokenLimit:          entity.Quota(d.TokenLimit),
		ImagesGenerated:     d.ImagesGenerated,
		LastTokenRefill:     d.LastTokenRefill,
		LastImageRefill:     d.LastImageRefill,
		SubscriptionExpires: d.SubscriptionExpires,
		Devices:             devices,
		Profile:             entity.Profile(d.Profile),
		MFAEnabled:          d.MFAEnabled,
		LoggedIn:            d.LoggedIn,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// mergeFields lists the fields a merge write sets. Empty identity fields
// and a zero creation time are left out so they keep the stored value.
func mergeFields(acc *entity.Account) map[string]any {
	doc := toAccountDocument(acc)
	fields := map[string]any{
		"tier":                doc.Tier,
		"tokensUsed":          doc.TokensUsed,
		"tokenLimit":          doc.TokenLimit,
		"imagesGenerated":     doc.ImagesGenerated,
		"lastTokenRefill":     doc.LastTokenRefill,
		"lastImageRefill":     doc.LastImageRefill,
		"subscriptionExpires": doc.SubscriptionExpires,
		"devices":             doc.Devices,
		"profile":             doc.Profile,
		"mfaEnabled":          doc.MFAEnabled,
		"loggedIn":            doc.LoggedIn,
		"updatedAt":           doc.UpdatedAt,
	}
	if doc.Name != "" {
		fields["name"] = doc.Name
	}
	if doc.Email != "" {
		fields["email"] = doc.Email
	}
	if doc.Phone != "" {
		fields["phone"] = doc.Phone
	}
	if doc.DateOfBirth != nil {
		fields["dateOfBirth"] = doc.DateOfBirth
	}
	if !doc.CreatedAt.IsZero() {
		fields["createdAt"] = doc.CreatedAt
	}

	return fields
}
