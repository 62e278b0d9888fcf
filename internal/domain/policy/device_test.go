package policy

import (
	"fmt"
	"testing"
	"time"

	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitDevice_CapIsHard(t *testing.T) {
	acc := freeAccount()

	for i := range entity.MaxDevices {
		var err error
		acc, err = AdmitDevice(acc, fmt.Sprintf("dev-%d", i), "test", "", t0)
		require.NoError(t, err)
	}
	require.Len(t, acc.Devices, entity.MaxDevices)

	for i := range 5 {
		next, err := AdmitDevice(acc, fmt.Sprintf("other-%d", i), "test", "", t0)
		assert.Nil(t, next)
		assert.True(t, errors.Is(err, domainerrors.ErrDeviceLimitExceeded))
		assert.Len(t, acc.Devices, entity.MaxDevices)
	}
}

func TestAdmitDevice_TouchKeepsLength(t *testing.T) {
	acc := freeAccount()
	acc, err := AdmitDevice(acc, "dev-a", "phone", "", t0)
	require.NoError(t, err)
	acc, err = AdmitDevice(acc, "dev-b", "laptop", "", t0)
	require.NoError(t, err)

	later := t0.Add(time.Hour)
	touched, err := AdmitDevice(acc, "dev-a", "", "push-token", later)
	require.NoError(t, err)

	assert.Len(t, touched.Devices, 2)
	assert.Equal(t, later, touched.Devices[0].LastActive)
	assert.Equal(t, "phone", touched.Devices[0].Descriptor)
	assert.Equal(t, "push-token", touched.Devices[0].PushToken)
	assert.Equal(t, t0, touched.Devices[1].LastActive)
	assert.Equal(t, t0, acc.Devices[0].LastActive)
}

func TestAdmitDevice_FullAccountStillTouchesKnownDevice(t *testing.T) {
	acc := freeAccount()
	for _, id := range []string{"a", "b", "c"} {
		var err error
		acc, err = AdmitDevice(acc, id, "", "", t0)
		require.NoError(t, err)
	}

	got, err := AdmitDevice(acc, "b", "", "", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, got.Devices, 3)
}

func TestRemoveDevice(t *testing.T) {
	acc := freeAccount()
	acc, err := AdmitDevice(acc, "a", "", "", t0)
	require.NoError(t, err)

	_, err = RemoveDevice(acc, "missing")
	assert.True(t, errors.Is(err, domainerrors.ErrDeviceNotFound))

	got, err := RemoveDevice(acc, "a")
	require.NoError(t, err)
	assert.Empty(t, got.Devices)
	assert.Len(t, acc.Devices, 1)
}
