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

// ScoreHandlerParams holds dependencies for ScoreHandler, injected by Fx.
type ScoreHandlerParams struct {
	fx.In

	ScoreUC usecase.ScoreUsecase
	Logger  *slog.Logger
}

// ScoreHandler serves score history and rank.
type ScoreHandler struct {
	scoreUC usecase.ScoreUsecase
	logger  *slog.Logger
}

// NewScoreHandler is the constructor for ScoreHandler
func NewScoreHandler(params ScoreHandlerParams) *ScoreHandler {
	return &ScoreHandler{
		scoreUC: params.ScoreUC,
		logger:  params.Logger,
	}
}

// RecordScore appends one session score.
func (h *ScoreHandler) RecordScore(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	var req usecase.ScoreInput
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid score input")
	}
	if err := c.Validate(&req); err != nil {
		return response.HandleAppError(c, err)
	}

	outcome, err := h.scoreUC.RecordScore(c.Request().Context(), principal.UID, req)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, outcome)
}

// ListScores returns the history in append order.
func (h *ScoreHandler) ListScores(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	records, err := h.scoreUC.ListScores(c.Request().Context(), principal.UID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, records)
}

// GetRank returns the rank derived from the full history.
func (h *ScoreHandler) GetRank(c echo.Context) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Missing caller identity")
	}

	rank, err := h.scoreUC.GetRank(c.Request().Context(), principal.UID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, rank)
}
