package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"archer/config"
	"archer/internal/delivery/api/response"
	deliverycontext "archer/internal/delivery/context"
	domainerrors "archer/internal/domain/errors"
	"archer/internal/errors"
	"archer/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Flow actions accepted by Advance, one per FlowInput variant.
const (
	ActionPasswordSignIn  = "password_sign_in"
	ActionSocialSignIn    = "social_sign_in"
	ActionSocialRedirect  = "social_redirect"
	ActionSignup          = "signup"
	ActionPasswordReset   = "password_reset"
	ActionPhoneNumber     = "phone_number"
	ActionSMSCode         = "sms_code"
	ActionMFACode         = "mfa_code"
	ActionCompleteProfile = "complete_profile"
	ActionNavigate        = "navigate"
)

var flowInputDecoders = map[string]func(json.RawMessage) (usecase.FlowInput, error){
	ActionPasswordSignIn:  decodeInput[usecase.PasswordSignIn],
	ActionSocialSignIn:    decodeInput[usecase.SocialSignIn],
	ActionSocialRedirect:  decodeInput[usecase.SocialRedirect],
	ActionSignup:          decodeInput[usecase.Signup],
	ActionPasswordReset:   decodeInput[usecase.PasswordReset],
	ActionPhoneNumber:     decodeInput[usecase.PhoneNumber],
	ActionSMSCode:         decodeInput[usecase.SMSCode],
	ActionMFACode:         decodeInput[usecase.MFACode],
	ActionCompleteProfile: decodeInput[usecase.CompleteProfile],
	ActionNavigate:        decodeInput[usecase.Navigate],
}

func decodeInput[T usecase.FlowInput](raw json.RawMessage) (usecase.FlowInput, error) {
	var in T
	if len(raw) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.WithStack(err)
	}

	return in, nil
}

// AuthFlowHandlerParams holds dependencies for AuthFlowHandler, injected by Fx.
type AuthFlowHandlerParams struct {
	fx.In

	AuthFlowUC usecase.AuthFlowUsecase
	Config     *config.Config
	Logger     *slog.Logger
}

// AuthFlowHandler exposes the authentication state machine.
type AuthFlowHandler struct {
	authFlowUC  usecase.AuthFlowUsecase
	callbackURL string
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthFlowHandler is the constructor for AuthFlowHandler
func NewAuthFlowHandler(params AuthFlowHandlerParams) *AuthFlowHandler {
	h := &AuthFlowHandler{
		authFlowUC: params.AuthFlowUC,
		logger:     params.Logger,
		now:        time.Now,
	}
	if params.Config.Firebase != nil {
		h.callbackURL = params.Config.Firebase.RedirectCallbackURL
	}

	return h
}

// AdvanceRequest submits one input in the state carried by Token.
// Client is checked separately since navigation may omit it.
type AdvanceRequest struct {
	Token  string                `json:"token" validate:"required"`
	Client usecase.ClientContext `json:"client" validate:"-"`
	Action string                `json:"action" validate:"required"`
	Input  json.RawMessage       `json:"input"`
}

// TokenRequest names a flow by its token.
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// RecoverRequest asks for a parked redirect result.
type RecoverRequest struct {
	Token  string                `json:"token" validate:"required"`
	Client usecase.ClientContext `json:"client" validate:"-"`
}

// StartFlow opens a flow in LOGIN.
func (h *AuthFlowHandler) StartFlow(c echo.Context) error {
	step, err := h.authFlowUC.Start(c.Request().Context())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, toFlowStepResponse(step, h.now()))
}

// AdvanceFlow decodes the tagged input for Action and submits it.
func (h *AuthFlowHandler) AdvanceFlow(c echo.Context) error {
	var req AdvanceRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid flow request")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	decode, ok := flowInputDecoders[req.Action]
	if !ok {
		return response.BadRequest(c, domainerrors.ErrValidationFailed.ErrorCode(), "Unknown action "+req.Action)
	}
	input, err := decode(req.Input)
	if err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid input for "+req.Action)
	}
	if err := c.Validate(input); err != nil {
		return response.HandleAppError(c, err)
	}
	if input.Method() != ActionNavigate {
		// Only steps that can exit the machine need a device.
		if err := c.Validate(&req.Client); err != nil {
			return response.HandleAppError(c, err)
		}
	}

	step, err := h.authFlowUC.Advance(c.Request().Context(), req.Token, req.Client, input)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toFlowStepResponse(step, h.now()))
}

// AbandonFlow discards a flow and its retained secrets.
func (h *AuthFlowHandler) AbandonFlow(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid flow request")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	if err := h.authFlowUC.Abandon(c.Request().Context(), req.Token); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.NoContent(c)
}

// RecoverRedirect consumes a parked redirect sign-in, if any.
func (h *AuthFlowHandler) RecoverRedirect(c echo.Context) error {
	var req RecoverRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid recover request")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}
	if err := c.Validate(&req.Client); err != nil {
		return response.HandleAppError(c, err)
	}

	step, err := h.authFlowUC.RecoverRedirect(c.Request().Context(), req.Token, req.Client)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, toFlowStepResponse(step, h.now()))
}

// RedirectCallback receives the browser back from a social provider and
// parks the result for the client to recover.
func (h *AuthFlowHandler) RedirectCallback(c echo.Context) error {
	flowID := c.QueryParam("flow")
	if flowID == "" {
		return response.BadRequest(c, "INVALID_INPUT", "Missing flow parameter")
	}

	// The provider verifies the request URI against the one it redirected to.
	callbackURL := h.callbackURL
	if callbackURL == "" {
		callbackURL = c.Scheme() + "://" + c.Request().Host + c.Request().URL.Path
	}
	if raw := c.Request().URL.RawQuery; raw != "" {
		callbackURL += "?" + raw
	}

	ctx := c.Request().Context()
	if err := h.authFlowUC.StoreRedirectResult(ctx, flowID, callbackURL); err != nil {
		deliverycontext.GetLoggerOrDefault(ctx, h.logger).Warn("Redirect callback rejected",
			slog.String("flowID", flowID), slog.Any("error", err))

		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{
		"message": "Sign-in received, return to the app to continue",
	})
}
