// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("already exist")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("no permission")
	ErrUnauthorized = errors.New("unauthorized")
	ErrCaptcha      = errors.New("captcha fail")
	ErrTokenInvalid = errors.New("expired or invalid token")
	ErrTokenExpired = errors.New("expired token")
	ErrDependency   = errors.New("dependency unavailable")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrCaptcha):
		Problem(w, http.StatusBadRequest, "Captcha Failed", err.Error())
	case errors.Is(err, ErrTokenExpired):
		Problem(w, http.StatusGone, "Token Expired", err.Error())
	case errors.Is(err, ErrTokenInvalid):
		Problem(w, http.StatusGone, "Token Invalid", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrDependency):
		Problem(w, http.StatusBadGateway, "Dependency Failure", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
