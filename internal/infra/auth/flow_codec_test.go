package auth

import (
	"testing"
	"time"

	"archer/config"
	"archer/internal/domain/entity"
	domainerrors "archer/internal/domain/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, secret string, now time.Time) *jwtFlowCodec {
	t.Helper()

	cfg := &config.Config{}
	cfg.SecretKey.Flow = secret
	codec, err := NewFlowCodec(cfg)
	require.NoError(t, err)

	c := codec.(*jwtFlowCodec)
	c.now = func() time.Time { return now }

	return c
}

func TestFlowCodec_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, "flow-secret", now)

	state := &entity.FlowState{
		ID:        uuid.New(),
		View:      entity.ViewMFAVerify,
		Email:     "robin@example.com",
		Hints:     []entity.FactorHint{{EnrollmentID: "f1", PhoneHint: "+*******1234"}},
		ExpiresAt: now.Add(15 * time.Minute),
	}

	token, err := codec.Encode(state)
	require.NoError(t, err)

	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, state.ID, got.ID)
	assert.Equal(t, state.View, got.View)
	assert.Equal(t, state.Hints, got.Hints)
	assert.True(t, state.ExpiresAt.Equal(got.ExpiresAt))
}

func TestFlowCodec_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, "flow-secret", now)

	token, err := codec.Encode(&entity.FlowState{ID: uuid.New(), View: entity.ViewLogin, ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)

	codec.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = codec.Decode(token)
	assert.True(t, errors.Is(err, domainerrors.ErrFlowExpired))
}

func TestFlowCodec_RejectsForeignTokens(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	codec := newTestCodec(t, "flow-secret", now)
	other := newTestCodec(t, "another-secret", now)

	token, err := other.Encode(&entity.FlowState{ID: uuid.New(), View: entity.ViewLogin, ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, err)
	_, err = codec.Decode(token)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidFlowToken))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"iss": flowIssuer}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = codec.Decode(none)
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidFlowToken))

	_, err = codec.Decode("not-a-token")
	assert.True(t, errors.Is(err, domainerrors.ErrInvalidFlowToken))
}

func TestNewFlowCodec_RequiresSecret(t *testing.T) {
	_, err := NewFlowCodec(&config.Config{})
	assert.Error(t, err)
}
