package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	deliverycontext "archer/internal/delivery/context"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmin struct {
	service.IdentityAdmin

	claims *service.TokenClaims
	err    error
}

func (f *fakeAdmin) VerifyIDToken(_ context.Context, _ string) (*service.TokenClaims, error) {
	return f.claims, f.err
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		admin      *fakeAdmin
		wantStatus int
		wantUID    string
	}{
		{
			name:       "missing header",
			admin:      &fakeAdmin{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer token",
			header:     "Basic abc",
			admin:      &fakeAdmin{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "rejected token",
			header:     "Bearer bad",
			admin:      &fakeAdmin{err: domainerrors.ErrUnauthorized},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "revoked token asks for reauthentication",
			header:     "Bearer revoked",
			admin:      &fakeAdmin{err: domainerrors.ErrReauthenticationRequired},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid token",
			header:     "Bearer good",
			admin:      &fakeAdmin{claims: &service.TokenClaims{UID: "uid-1", Email: "a@example.com"}},
			wantStatus: http.StatusOK,
			wantUID:    "uid-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen deliverycontext.Principal
			next := func(c echo.Context) error {
				seen, _ = GetPrincipal(c)

				return c.NoContent(http.StatusOK)
			}

			mw := NewAuthMiddleware(tt.admin, slog.Default())
			require.NoError(t, mw.Authenticate(next)(c))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUID, seen.UID)
			if tt.wantUID != "" {
				assert.Equal(t, "good", seen.IDToken)
			}
		})
	}
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		principal  *deliverycontext.Principal
		wantStatus int
	}{
		{
			name:       "no principal",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "account owner",
			principal:  &deliverycontext.Principal{UID: "uid-1"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "operator",
			principal:  &deliverycontext.Principal{UID: "ops-1", Admin: true},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPut, "/admin/accounts/uid-1/subscription", nil)
			if tt.principal != nil {
				req = req.WithContext(deliverycontext.WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			called := false
			next := func(c echo.Context) error {
				called = true

				return c.NoContent(http.StatusOK)
			}

			mw := NewAuthMiddleware(&fakeAdmin{}, slog.Default())
			require.NoError(t, mw.RequireAdmin(next)(c))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, called)
		})
	}
}

func TestAuthMiddleware_Authenticate_CarriesAdminClaim(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer ops")
	rec := httptest.NewRecorder()

	var seen deliverycontext.Principal
	next := func(c echo.Context) error {
		seen, _ = GetPrincipal(c)

		return c.NoContent(http.StatusOK)
	}

	mw := NewAuthMiddleware(&fakeAdmin{claims: &service.TokenClaims{UID: "ops-1", Admin: true}}, slog.Default())
	require.NoError(t, mw.Authenticate(next)(e.NewContext(req, rec)))

	assert.True(t, seen.Admin)
}
