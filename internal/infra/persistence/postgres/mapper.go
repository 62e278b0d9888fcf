package postgres

import (
	"archer/internal/domain/entity"
	"archer/internal/infra/persistence/model"
)

func toAccountDomain(m *model.AccountModel) *entity.Account {
	devices := make([]entity.Device, 0, len(m.Devices))
	for _, d := range m.Devices {
		devices = append(devices, entity.Device{
			ID:         d.DeviceID,
			Descriptor: d.Descriptor,
			LastActive: d.LastActive,
			PushToken:  d.PushToken,
		})
	}

	return &entity.Account{
		ID:                  m.ID,
		Name:                m.Name,
		Email:               m.Email,
		DateOfBirth:         m.DateOfBirth,
		Phone:               m.Phone,
		Tier:                entity.Tier(m.Tier),
		TokensUsed:          m.TokensUsed,
		TokenLimit:          entity.Quota(m.TokenLimit),
		ImagesGenerated:     m.ImagesGenerated,
		LastTokenRefill:     m.LastTokenRefill,
		LastImageRefill:     m.LastImageRefill,
		SubscriptionExpires: m.SubscriptionExpires,
		Devices:             devices,
		Profile: entity.Profile{
			BowType:     m.Profile.BowType,
			Level:       m.Profile.Level,
			Hobby:       m.Profile.Hobby,
			SocialLinks: m.Profile.SocialLinks,
		},
		MFAEnabled: m.MFAEnabled,
		LoggedIn:   m.LoggedIn,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromAccountDomain(acc *entity.Account) *model.AccountModel {
	devices := make([]model.AccountDeviceModel, 0, len(acc.Devices))
	for i, d := range acc.Devices {
		devices = append(devices, model.AccountDeviceModel{
			AccountID:  acc.ID,
			DeviceID:   d.ID,
			Position:   i,
			Descriptor: d.Descriptor,
			PushToken:  d.PushToken,
			LastActive: d.LastActive,
		})
	}

	return &model.AccountModel{
		ID:                  acc.ID,
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
		Profile: model.ProfileColumn{
			BowType:     acc.Profile.BowType,
			Level:       acc.Profile.Level,
			Hobby:       acc.Profile.Hobby,
			SocialLinks: acc.Profile.SocialLinks,
		},
		MFAEnabled: acc.MFAEnabled,
		LoggedIn:   acc.LoggedIn,
		CreatedAt:  acc.CreatedAt,
		UpdatedAt:  acc.UpdatedAt,
		Devices:    devices,
	}
}

func toScoreDomain(m *model.ScoreRecordModel) entity.ScoreRecord {
	return entity.ScoreRecord{
		Score:      m.Score,
		Label:      m.Label,
		RecordedAt: m.RecordedAt,
	}
}
