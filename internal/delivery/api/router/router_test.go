package router

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"archer/config"
	"archer/internal/delivery/api/middleware"
	"archer/internal/delivery/api/router/handler"
	"archer/internal/delivery/api/validator"
	"archer/internal/domain/entity"
	"archer/internal/domain/service"
	"archer/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type staticAdmin struct {
	service.IdentityAdmin

	claims *service.TokenClaims
}

func (s *staticAdmin) VerifyIDToken(_ context.Context, _ string) (*service.TokenClaims, error) {
	return s.claims, nil
}

type recordingAccountUsecase struct {
	usecase.AccountUsecase

	changed []string
}

func (r *recordingAccountUsecase) ChangeSubscription(_ context.Context, uid string, input usecase.SubscriptionInput) (*entity.Account, error) {
	r.changed = append(r.changed, uid)

	return &entity.Account{ID: uid, Tier: input.Tier}, nil
}

func newTestRouter(claims *service.TokenClaims, uc usecase.AccountUsecase) *echo.Echo {
	e := echo.New()
	e.Validator = validator.New()

	NewRouter(RouterParams{
		AccountHandler: handler.NewAccountHandler(handler.AccountHandlerParams{AccountUC: uc, Logger: slog.Default()}),
		AuthMiddleware: middleware.NewAuthMiddleware(&staticAdmin{claims: claims}, slog.Default()),
		RateLimiter:    middleware.NewRateLimiter(&config.Config{}),
		Config:         &config.Config{},
	}).RegisterRoutes(e)

	return e
}

func putSubscription(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"tier":"ultra","expires_at":"2126-01-01T00:00:00Z"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer id-token")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestRouter_SubscriptionIsOperatorOnly(t *testing.T) {
	t.Run("account owner cannot grant a tier", func(t *testing.T) {
		uc := &recordingAccountUsecase{}
		e := newTestRouter(&service.TokenClaims{UID: "uid-1"}, uc)

		rec := putSubscription(e, "/admin/accounts/uid-1/subscription")

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, uc.changed)
	})

	t.Run("no self-service route under /me", func(t *testing.T) {
		uc := &recordingAccountUsecase{}
		e := newTestRouter(&service.TokenClaims{UID: "uid-1"}, uc)

		rec := putSubscription(e, "/me/subscription")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, uc.changed)
	})

	t.Run("operator grants a tier", func(t *testing.T) {
		uc := &recordingAccountUsecase{}
		e := newTestRouter(&service.TokenClaims{UID: "ops-1", Admin: true}, uc)

		rec := putSubscription(e, "/admin/accounts/uid-1/subscription")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"uid-1"}, uc.changed)
	})
}
