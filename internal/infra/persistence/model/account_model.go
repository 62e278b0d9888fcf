package model

import (
	"time"
)

// AccountModel mirrors the 'accounts' table. ID is the identity provider uid.
type AccountModel struct {
	ID                  string     `gorm:"type:varchar(128);primaryKey"`
	Name                string     `gorm:"type:varchar(100)"`
	Email               string     `gorm:"type:varchar(255);index"`
	DateOfBirth         *time.Time `gorm:"type:date"`
	Phone               string     `gorm:"type:varchar(32)"`
	Tier                string     `gorm:"type:varchar(16);not null;default:free"`
	TokensUsed          int64      `gorm:"not null;default:0"`
	TokenLimit          int64      `gorm:"not null"`
	ImagesGenerated     int64      `gorm:"not null;default:0"`
	LastTokenRefill     time.Time  `gorm:"not null"`
	LastImageRefill     time.Time  `gorm:"not null"`
	SubscriptionExpires *time.Time
	Profile             ProfileColumn `gorm:"type:jsonb;serializer:json"`
	MFAEnabled          bool          `gorm:"column:mfa_enabled;not null;default:false"`
	LoggedIn            bool          `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Devices []AccountDeviceModel `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}

// ProfileColumn is the JSON shape of accounts.profile.
type ProfileColumn struct {
	BowType     string            `json:"bow_type,omitempty"`
	Level       string            `json:"level,omitempty"`
	Hobby       string            `json:"hobby,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
}

// AccountDeviceModel mirrors the 'account_devices' table. Position keeps the
// admission order of the device list.
type AccountDeviceModel struct {
	AccountID  string    `gorm:"type:varchar(128);primaryKey"`
	DeviceID   string    `gorm:"type:varchar(255);primaryKey"`
	Position   int       `gorm:"not null"`
	Descriptor string    `gorm:"type:varchar(255)"`
	PushToken  string    `gorm:"type:varchar(255)"`
	LastActive time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (AccountDeviceModel) TableName() string {
	return "account_devices"
}
