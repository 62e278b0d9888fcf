package handler

import (
	"log/slog"
	"net/http"
	"time"

	"archer/internal/delivery/api/middleware"
	"archer/internal/delivery/api/response"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AccountHandlerParams holds dependencies for AccountHandler, injected by Fx.
type AccountHandlerParams struct {
	fx.In

	AccountUC usecase.AccountUsecase
	Logger    *slog.Logger
}

// AccountHandler serves the signed-in account under /me.
type AccountHandler struct {
	accountUC usecase.AccountUsecase
	logger    *slog.Logger
	now       func() time.Time
}

// NewAccountHandler is the constructor for AccountHandler
func NewAccountHandler(params AccountHandlerParams) *AccountHandler {
	return &AccountHandler{
		accountUC: params.AccountUC,
		logger:    params.Logger,
		now:       time.Now,
	}
}

// ConsumeTokensRequest charges chat tokens.
type ConsumeTokensRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

// GetAccount returns the account after the app-resume refill.
func (h *AccountHandler) GetAccount(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	acc, err := h.accountUC.GetAccount(c.Request().Context(), principal.UID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toAccountResponse(acc, h.now()))
}

// UpdateProfile applies a partial profile edit.
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	var req usecase.ProfileInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid profile input")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	acc, err := h.accountUC.UpdateProfile(c.Request().Context(), principal.UID, req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toAccountResponse(acc, h.now()))
}

// ListDevices returns the registered devices.
func (h *AccountHandler) ListDevices(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	devices, err := h.accountUC.ListDevices(c.Request().Context(), principal.UID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, devices)
}

// RemoveDevice unregisters one device.
func (h *AccountHandler) RemoveDevice(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	deviceID := c.Param("deviceId")
	if deviceID == "" {
		return response.BadRequest(c, "INVALID_ID", "Invalid device ID")
	}

	acc, err := h.accountUC.RemoveDevice(c.Request().Context(), principal.UID, deviceID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, acc.Devices)
}

// ConsumeTokens charges chat tokens against the current window.
func (h *AccountHandler) ConsumeTokens(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	var req ConsumeTokensRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid usage input")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	acc, err := h.accountUC.ConsumeTokens(c.Request().Context(), principal.UID, req.Amount)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toAccountResponse(acc, h.now()).Usage)
}

// RecordImage charges one generated image.
func (h *AccountHandler) RecordImage(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	acc, err := h.accountUC.RecordImageGeneration(c.Request().Context(), principal.UID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toAccountResponse(acc, h.now()).Usage)
}

// ChangeSubscription moves the account named by :uid to another tier.
// Only operators reach it; see AuthMiddleware.RequireAdmin.
func (h *AccountHandler) ChangeSubscription(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}
	if !principal.Admin {
		return response.HandleAppError(c, domainerrors.ErrForbidden)
	}
	uid := c.Param("uid")
	if uid == "" {
		return response.BadRequest(c, "INVALID_INPUT", "Missing account id")
	}

	var req usecase.SubscriptionInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid subscription input")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	acc, err := h.accountUC.ChangeSubscription(c.Request().Context(), uid, req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toAccountResponse(acc, h.now()))
}

// SignOut ends every session of the caller.
func (h *AccountHandler) SignOut(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	if err := h.accountUC.SignOut(c.Request().Context(), principal.UID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.NoContent(c)
}

// DeleteAccount removes a Free account and its identity.
func (h *AccountHandler) DeleteAccount(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	if err := h.accountUC.DeleteAccount(c.Request().Context(), principal.UID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.NoContent(c)
}
