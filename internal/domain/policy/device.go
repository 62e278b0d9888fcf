package policy

import (
	"slices"
	"time"

	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/errors"
)

// AdmitDevice registers deviceID on the account or touches it when already
// present. A new device beyond MaxDevices is rejected; nothing is evicted.
func AdmitDevice(acc *entity.Account, deviceID, descriptor, pushToken string, now time.Time) (*entity.Account, error) {
	if deviceID == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("device id is required")
	}

	next := acc.Clone()
	if i := slices.IndexFunc(next.Devices, func(d entity.Device) bool { return d.ID == deviceID }); i >= 0 {
		next.Devices[i].LastActive = now
		if descriptor != "" {
			next.Devices[i].Descriptor = descriptor
		}
		if pushToken != "" {
			next.Devices[i].PushToken = pushToken
		}

		return next, nil
	}

	if len(next.Devices) >= entity.MaxDevices {
		return nil, errors.WithStack(domainerrors.ErrDeviceLimitExceeded)
	}

	next.Devices = append(next.Devices, entity.Device{
		ID:         deviceID,
		Descriptor: descriptor,
		LastActive: now,
		PushToken:  pushToken,
	})

	return next, nil
}

// RemoveDevice filters deviceID out of the account's device list.
func RemoveDevice(acc *entity.Account, deviceID string) (*entity.Account, error) {
	if !acc.HasDevice(deviceID) {
		return nil, errors.WithStack(domainerrors.ErrDeviceNotFound)
	}

	next := acc.Clone()
	next.Devices = slices.DeleteFunc(next.Devices, func(d entity.Device) bool { return d.ID == deviceID })

	return next, nil
}
