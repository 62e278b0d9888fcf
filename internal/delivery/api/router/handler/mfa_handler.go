package handler

import (
	"log/slog"
	"net/http"

	"archer/internal/delivery/api/middleware"
	"archer/internal/delivery/api/response"
	"archer/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// MFAHandlerParams holds dependencies for MFAHandler, injected by Fx.
type MFAHandlerParams struct {
	fx.In

	MFAUC  usecase.MFAUsecase
	Logger *slog.Logger
}

// MFAHandler serves phone second-factor enrollment.
type MFAHandler struct {
	mfaUC  usecase.MFAUsecase
	logger *slog.Logger
}

// NewMFAHandler is the constructor for MFAHandler
func NewMFAHandler(params MFAHandlerParams) *MFAHandler {
	return &MFAHandler{
		mfaUC:  params.MFAUC,
		logger: params.Logger,
	}
}

// ReauthenticateRequest carries the re-entered password.
type ReauthenticateRequest struct {
	Password string `json:"password" validate:"required"`
}

// ConfirmEnrollmentRequest carries the SMS code.
type ConfirmEnrollmentRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

func principalOf(c echo.Context) (usecase.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)

	return usecase.Principal{UID: p.UID, IDToken: p.IDToken}, ok
}

// StartEnrollment begins binding a phone.
func (h *MFAHandler) StartEnrollment(c echo.Context) error {
	principal, ok := principalOf(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	var req usecase.EnrollmentInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid enrollment input")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	step, err := h.mfaUC.StartEnrollment(c.Request().Context(), principal, req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, toEnrollmentResponse(step))
}

// Reauthenticate re-enters the password and resumes the enrollment.
func (h *MFAHandler) Reauthenticate(c echo.Context) error {
	principal, ok := principalOf(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	var req ReauthenticateRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid password input")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	step, err := h.mfaUC.Reauthenticate(c.Request().Context(), principal, c.Param("id"), req.Password)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toEnrollmentResponse(step))
}

// ResendVerificationEmail sends the verification link again.
func (h *MFAHandler) ResendVerificationEmail(c echo.Context) error {
	principal, ok := principalOf(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	step, err := h.mfaUC.ResendVerificationEmail(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toEnrollmentResponse(step))
}

// RecheckEmailVerification resumes once the email is verified.
func (h *MFAHandler) RecheckEmailVerification(c echo.Context) error {
	principal, ok := principalOf(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	step, err := h.mfaUC.RecheckEmailVerification(c.Request().Context(), principal, c.Param("id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toEnrollmentResponse(step))
}

// ConfirmEnrollment binds the phone with the received code.
func (h *MFAHandler) ConfirmEnrollment(c echo.Context) error {
	principal, ok := principalOf(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	var req ConfirmEnrollmentRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid code input")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	step, err := h.mfaUC.ConfirmEnrollment(c.Request().Context(), principal, c.Param("id"), req.Code)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toEnrollmentResponse(step))
}

// CancelEnrollment discards a pending enrollment.
func (h *MFAHandler) CancelEnrollment(c echo.Context) error {
	principal, ok := principalOf(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	if err := h.mfaUC.CancelEnrollment(c.Request().Context(), principal, c.Param("id")); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.NoContent(c)
}

// Unenroll withdraws every second factor.
func (h *MFAHandler) Unenroll(c echo.Context) error {
	principal, ok := principalOf(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	result, err := h.mfaUC.Unenroll(c.Request().Context(), principal)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, UnenrollResponse{
		Outcomes:  result.Outcomes,
		OutOfSync: result.OutOfSync(),
	})
}
