package web

import (
	"errors"
	"fmt"
	"net/http"

	"zyberhero/internal/apperr"
	"zyberhero/internal/logger"
)

// AppError is an API error with a machine-readable code.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// FailErr writes a structured error response from an AppError.
// Optional detail is appended to the message (e.g. err.Error()).
func FailErr(w http.ResponseWriter, r *http.Request, e *AppError, detail ...string) {
	msg := e.Message
	if len(detail) > 0 && detail[0] != "" {
		msg = msg + ": " + detail[0]
	}
	Fail(w, r, e.Code, msg, e.HTTPStatus)
}

// FromError writes the response for an error returned by a core service.
// Client errors carry their own message; internal causes are logged and
// replaced with an opaque message.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal("unexpected error", err)
	}

	switch ae.Kind {
	case apperr.KindValidation:
		Fail(w, r, ErrValidation.Code, ae.Message, ErrValidation.HTTPStatus)
	case apperr.KindMissingIdentifier:
		Fail(w, r, ErrMissingIdentifier.Code, ae.Message, ErrMissingIdentifier.HTTPStatus)
	case apperr.KindInvalidID:
		Fail(w, r, ErrInvalidID.Code, ae.Message, ErrInvalidID.HTTPStatus)
	case apperr.KindNotFound:
		Fail(w, r, ErrNotFound.Code, ae.Message, ErrNotFound.HTTPStatus)
	case apperr.KindDeviceNotRegistered:
		Fail(w, r, ErrDeviceNotRegistered.Code, ae.Message, ErrDeviceNotRegistered.HTTPStatus)
	case apperr.KindConflict:
		logger.HTTP.Warn().Err(err).Str("path", r.URL.Path).Msg("store conflict")
		FailErr(w, r, ErrConflict)
	default:
		logger.HTTP.Error().Err(err).
			Str("request_id", GetRequestID(r)).
			Str("path", r.URL.Path).
			Msg("request failed")
		FailErr(w, r, ErrInternalError)
	}
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{"AUTH_UNAUTHORIZED", "missing or expired token", 401, nil}
	ErrForbidden    = &AppError{"AUTH_FORBIDDEN", "permission denied", 403, nil}
	ErrTokenExpired = &AppError{"AUTH_TOKEN_EXPIRED", "token expired", 401, nil}
	ErrTokenInvalid = &AppError{"AUTH_TOKEN_INVALID", "invalid token", 401, nil}
)

// ---------------------------------------------------------------------------
// System / generic
// ---------------------------------------------------------------------------

var (
	ErrNotFound      = &AppError{"NOT_FOUND", "resource not found", 404, nil}
	ErrInvalidParam  = &AppError{"INVALID_PARAM", "invalid request parameter", 400, nil}
	ErrInvalidBody   = &AppError{"INVALID_BODY", "invalid request body", 400, nil}
	ErrInternalError = &AppError{"INTERNAL_ERROR", "internal server error", 500, nil}
	ErrRateLimited   = &AppError{"RATE_LIMITED", "too many requests, please try later", 429, nil}
	ErrInvalidInput  = &AppError{"INVALID_INPUT", "input contains illegal characters", 400, nil}
	ErrConflict      = &AppError{"CONFLICT", "request conflicts with a concurrent change, retry", 409, nil}
)

// ---------------------------------------------------------------------------
// Devices / telemetry
// ---------------------------------------------------------------------------

var (
	ErrValidation          = &AppError{"VALIDATION_FAILED", "validation failed", 400, nil}
	ErrMissingIdentifier   = &AppError{"MISSING_IDENTIFIER", "device identifier required", 400, nil}
	ErrInvalidID           = &AppError{"INVALID_ID", "invalid id", 400, nil}
	ErrDeviceNotRegistered = &AppError{"DEVICE_NOT_REGISTERED", "Device not registered", 404, nil}
)
