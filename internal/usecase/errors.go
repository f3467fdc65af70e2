package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation    = "validation_error"
	CodeUnauthorized  = "unauthorized"
	CodeForbidden     = "forbidden"
	CodeNotFound      = "not_found"
	CodeInvalidState  = "invalid_state"
	CodeConfiguration = "configuration_error"
	CodeInternal      = "internal_error"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeInvalidState
	case http.StatusServiceUnavailable:
		return CodeConfiguration
	default:
		return CodeInternal
	}
}

func ValidationError(msg string) error   { return NewHTTPError(http.StatusBadRequest, msg) }
func ForbiddenError(msg string) error    { return NewHTTPError(http.StatusForbidden, msg) }
func NotFoundError(msg string) error     { return NewHTTPError(http.StatusNotFound, msg) }
func InvalidStateError(msg string) error { return NewHTTPError(http.StatusConflict, msg) }

func UnauthorizedError() error {
	return NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

func ConfigurationError(msg string) error {
	return NewHTTPError(http.StatusServiceUnavailable, msg)
}

// 内部の詳細はログにだけ出す
func InternalError() error {
	return NewHTTPError(http.StatusInternalServerError, "internal error")
}
