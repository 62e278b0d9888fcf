package errors

import (
	"net/http"
	"testing"

	"archer/internal/domain/entity"
	"archer/internal/errors"

	"github.com/stretchr/testify/assert"
)

func TestBaseError_IsMatchesDetailedCopies(t *testing.T) {
	detailed := ErrProviderUnavailable.WithDetails("QUOTA_EXCEEDED")
	wrapped := errors.Wrap(detailed, "sign in failed")

	assert.True(t, errors.Is(wrapped, ErrProviderUnavailable))
	assert.False(t, errors.Is(wrapped, ErrInvalidCredential))
	assert.Equal(t, "QUOTA_EXCEEDED", detailed.Details())
	assert.Equal(t, http.StatusBadGateway, detailed.HTTPCode())
}

func TestSecondFactorRequiredError_AsType(t *testing.T) {
	signal := &SecondFactorRequiredError{Resolver: entity.MFAResolver{
		PendingCredential: "pending",
		Hints:             []entity.FactorHint{{EnrollmentID: "enr-1"}},
	}}
	wrapped := errors.Wrap(signal, "password sign in")

	got, ok := errors.AsType[*SecondFactorRequiredError](wrapped)
	assert.True(t, ok)
	assert.Equal(t, "pending", got.Resolver.PendingCredential)
	assert.Equal(t, KindSecondFactorRequired, got.ErrorCode())

	var appErr AppError
	assert.True(t, errors.As(wrapped, &appErr))
}
