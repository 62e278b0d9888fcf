// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"net/http"

	"archer/config"
	"archer/internal/delivery/api/middleware"
	"archer/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthFlowHandler *handler.AuthFlowHandler
	AccountHandler  *handler.AccountHandler
	MFAHandler      *handler.MFAHandler
	ScoreHandler    *handler.ScoreHandler
	AuthMiddleware  *middleware.AuthMiddleware
	RateLimiter     *middleware.RateLimiter
	MetricsHandler  http.Handler `name:"metrics" optional:"true"`
	Config          *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authFlowHandler *handler.AuthFlowHandler
	accountHandler  *handler.AccountHandler
	mfaHandler      *handler.MFAHandler
	scoreHandler    *handler.ScoreHandler
	authMiddleware  *middleware.AuthMiddleware
	rateLimiter     *middleware.RateLimiter
	metricsHandler  http.Handler
	config          *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authFlowHandler: params.AuthFlowHandler,
		accountHandler:  params.AccountHandler,
		mfaHandler:      params.MFAHandler,
		scoreHandler:    params.ScoreHandler,
		authMiddleware:  params.AuthMiddleware,
		rateLimiter:     params.RateLimiter,
		metricsHandler:  params.MetricsHandler,
		config:          params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	if r.metricsHandler != nil && r.config.Metrics != nil && r.config.Metrics.Enabled {
		e.GET(r.config.Metrics.Path, echo.WrapHandler(r.metricsHandler))
	}

	// Auth flow routes; the flow token is the only state the client holds
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/flows", r.authFlowHandler.StartFlow)
		authGroup.POST("/flows/advance", r.authFlowHandler.AdvanceFlow, r.rateLimiter.Limit) // Sends codes and checks credentials
		authGroup.POST("/flows/abandon", r.authFlowHandler.AbandonFlow)
		authGroup.POST("/flows/recover", r.authFlowHandler.RecoverRedirect, r.rateLimiter.Limit)
		authGroup.GET("/redirect/callback", r.authFlowHandler.RedirectCallback)
	}

	// Account routes that require a verified ID token
	meGroup := e.Group("/me")
	meGroup.Use(r.authMiddleware.Authenticate)
	{
		meGroup.GET("", r.accountHandler.GetAccount)
		meGroup.DELETE("", r.accountHandler.DeleteAccount)
		meGroup.PATCH("/profile", r.accountHandler.UpdateProfile)
		meGroup.POST("/sign-out", r.accountHandler.SignOut)

		meGroup.GET("/devices", r.accountHandler.ListDevices)
		meGroup.DELETE("/devices/:deviceId", r.accountHandler.RemoveDevice)

		meGroup.POST("/usage/tokens", r.accountHandler.ConsumeTokens)
		meGroup.POST("/usage/images", r.accountHandler.RecordImage)

		meGroup.POST("/scores", r.scoreHandler.RecordScore)
		meGroup.GET("/scores", r.scoreHandler.ListScores)
		meGroup.GET("/rank", r.scoreHandler.GetRank)
	}

	// Operator routes; tiers are granted by billing, never by the account owner
	adminGroup := e.Group("/admin")
	adminGroup.Use(r.authMiddleware.Authenticate, r.authMiddleware.RequireAdmin)
	{
		adminGroup.PUT("/accounts/:uid/subscription", r.accountHandler.ChangeSubscription)
	}

	// Second factor management
	mfaGroup := meGroup.Group("/mfa")
	{
		mfaGroup.DELETE("", r.mfaHandler.Unenroll)
		mfaGroup.POST("/enrollments", r.mfaHandler.StartEnrollment, r.rateLimiter.Limit)
		mfaGroup.POST("/enrollments/:id/reauthenticate", r.mfaHandler.Reauthenticate, r.rateLimiter.Limit)
		mfaGroup.POST("/enrollments/:id/verification-email", r.mfaHandler.ResendVerificationEmail, r.rateLimiter.Limit)
		mfaGroup.POST("/enrollments/:id/recheck", r.mfaHandler.RecheckEmailVerification)
		mfaGroup.POST("/enrollments/:id/confirm", r.mfaHandler.ConfirmEnrollment, r.rateLimiter.Limit)
		mfaGroup.DELETE("/enrollments/:id", r.mfaHandler.CancelEnrollment)
	}
}
