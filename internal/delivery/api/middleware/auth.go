package middleware

import (
	"log/slog"
	"strings"

	"archer/internal/delivery/api/response"
	deliverycontext "archer/internal/delivery/context"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/domain/service"
	"archer/internal/errors"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware verifies provider ID tokens on account routes.
type AuthMiddleware struct {
	admin  service.IdentityAdmin
	logger *slog.Logger
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(admin service.IdentityAdmin, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{admin: admin, logger: logger}
}

// Authenticate requires an "Authorization: Bearer <id token>" header and
// stores the verified caller in the request context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, "MISSING_TOKEN", "Authorization header is missing")
		}

		idToken, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || idToken == "" {
			return response.Unauthorized(c, "INVALID_TOKEN", "Invalid token format, must be Bearer token")
		}

		ctx := c.Request().Context()
		claims, err := m.admin.VerifyIDToken(ctx, idToken)
		if err != nil {
			deliverycontext.GetLoggerOrDefault(ctx, m.logger).Debug("ID token rejected", slog.Any("error", err))
			if errors.Is(err, domainerrors.ErrReauthenticationRequired) {
				return response.HandleAppError(c, err)
			}

			return response.Unauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
		}

		principal := deliverycontext.Principal{
			UID:     claims.UID,
			Email:   claims.Email,
			IDToken: idToken,
			Admin:   claims.Admin,
		}
		ctx = deliverycontext.WithPrincipal(ctx, principal)
		ctx = deliverycontext.WithLogger(ctx, deliverycontext.GetLoggerOrDefault(ctx, m.logger).With(slog.String("uid", claims.UID)))
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// RequireAdmin lets only operator principals through. It must run after
// Authenticate.
func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, ok := GetPrincipal(c)
		if !ok {
			return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
		}
		if !principal.Admin {
			deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger).
				Warn("Admin route refused", slog.String("uid", principal.UID), slog.String("path", c.Path()))

			return response.HandleAppError(c, domainerrors.ErrForbidden)
		}

		return next(c)
	}
}

// GetPrincipal returns the caller set by Authenticate.
func GetPrincipal(c echo.Context) (deliverycontext.Principal, bool) {
	return deliverycontext.GetPrincipal(c.Request().Context())
}
