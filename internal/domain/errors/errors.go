package errors

import (
	"net/http"

	"archer/internal/domain/entity"
	"archer/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code, doubles as the error kind
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}

	return e.message
}

// Is matches any BaseError carrying the same error code, so detailed copies
// produced by WithDetails still satisfy errors.Is against the predefined value.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return t.errorCode == e.errorCode
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Error kinds surfaced to callers.
const (
	KindInvalidCredential        = "INVALID_CREDENTIAL"
	KindAccountNotFound          = "ACCOUNT_NOT_FOUND"
	KindEmailAlreadyRegistered   = "EMAIL_ALREADY_REGISTERED"
	KindDeviceLimitExceeded      = "DEVICE_LIMIT_EXCEEDED"
	KindSecondFactorRequired     = "SECOND_FACTOR_REQUIRED"
	KindReauthenticationRequired = "REAUTHENTICATION_REQUIRED"
	KindUnverifiedEmail          = "UNVERIFIED_EMAIL"
	KindProviderUnavailable      = "PROVIDER_UNAVAILABLE"
)

// Predefined error types
var (
	// Identity-related errors
	ErrInvalidCredential = NewBaseError(
		http.StatusUnauthorized,
		KindInvalidCredential,
		"Incorrect email, password or code",
		"",
	)

	ErrAccountNotFound = NewBaseError(
		http.StatusNotFound,
		KindAccountNotFound,
		"No account exists for these credentials",
		"",
	)

	ErrEmailAlreadyRegistered = NewBaseError(
		http.StatusConflict,
		KindEmailAlreadyRegistered,
		"This email is already registered",
		"",
	)

	ErrDeviceLimitExceeded = NewBaseError(
		http.StatusForbidden,
		KindDeviceLimitExceeded,
		"This account is already active on the maximum number of devices",
		"",
	)

	ErrReauthenticationRequired = NewBaseError(
		http.StatusUnauthorized,
		KindReauthenticationRequired,
		"Please enter your password again to continue",
		"",
	)

	ErrUnverifiedEmail = NewBaseError(
		http.StatusForbidden,
		KindUnverifiedEmail,
		"Verify your email address before enabling two-step verification",
		"",
	)

	ErrProviderUnavailable = NewBaseError(
		http.StatusBadGateway,
		KindProviderUnavailable,
		"The identity provider could not complete the request",
		"",
	)

	// Flow-related errors
	ErrInvalidTransition = NewBaseError(
		http.StatusConflict,
		"INVALID_TRANSITION",
		"This action is not available at the current step",
		"",
	)

	ErrFlowExpired = NewBaseError(
		http.StatusGone,
		"FLOW_EXPIRED",
		"This sign-in attempt has expired, please start again",
		"",
	)

	ErrInvalidFlowToken = NewBaseError(
		http.StatusBadRequest,
		"INVALID_FLOW_TOKEN",
		"The sign-in state could not be read",
		"",
	)

	// Account-related errors
	ErrQuotaExceeded = NewBaseError(
		http.StatusTooManyRequests,
		"QUOTA_EXCEEDED",
		"Usage quota exhausted until the next refill",
		"",
	)

	ErrSubscriptionActive = NewBaseError(
		http.StatusConflict,
		"SUBSCRIPTION_ACTIVE",
		"Cancel the active subscription before deleting the account",
		"",
	)

	ErrDeviceNotFound = NewBaseError(
		http.StatusNotFound,
		"DEVICE_NOT_FOUND",
		"Device is not registered on this account",
		"",
	)

	ErrAccountUpdateFailed = NewBaseError(
		http.StatusInternalServerError,
		"ACCOUNT_UPDATE_FAILED",
		"Failed to update account",
		"",
	)

	// Validation-related errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Input validation failed",
		"",
	)

	ErrPasswordStrength = NewBaseError(
		http.StatusBadRequest,
		"PASSWORD_STRENGTH",
		"Password is too weak",
		"",
	)

	// General errors
	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"Authentication required",
		"",
	)

	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"Internal error",
		"",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"Access denied",
		"",
	)
)

// SecondFactorRequiredError is the control-flow signal raised by a first-factor
// sign-in when the identity has an enrolled second factor. It carries the
// resolver needed to finish the sign-in.
type SecondFactorRequiredError struct {
	Resolver entity.MFAResolver
}

// Error implements the error interface
func (e *SecondFactorRequiredError) Error() string {
	return "second factor required"
}

// HTTPCode returns the HTTP status code
func (e *SecondFactorRequiredError) HTTPCode() int {
	return http.StatusUnauthorized
}

// ErrorCode returns the business error code
func (e *SecondFactorRequiredError) ErrorCode() string {
	return KindSecondFactorRequired
}

// Message returns the user-friendly error message
func (e *SecondFactorRequiredError) Message() string {
	return "Enter the code sent to your phone"
}

// Details returns detailed error information
func (e *SecondFactorRequiredError) Details() string {
	return ""
}

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "Database operation failed"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
