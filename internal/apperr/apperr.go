package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes. Kiosk flow codes start at 1000.
const (
	CodeInvalidRequest = 400
	CodeUnauthorized   = 401
	CodeNotFound       = 404
	CodeInternal       = 500

	CodeCatalogUnavailable   = 1001
	CodeReviewSubmitFailed   = 1002
	CodeSpinResolutionFailed = 1003
	CodeSegmentMismatch      = 1004
	CodeInvalidTransition    = 1005
	CodeSpinRejected         = 1006
)

// AppError carries a stable code plus the message shown on the kiosk.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code, so errors.Is(err, ErrCatalogUnavailable) works on wrapped values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code int, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

var (
	ErrCatalogUnavailable   = New(CodeCatalogUnavailable, "rewards are unavailable")
	ErrReviewSubmitFailed   = New(CodeReviewSubmitFailed, "failed to submit review")
	ErrSpinResolutionFailed = New(CodeSpinResolutionFailed, "failed to spin wheel")
	ErrSegmentMismatch      = New(CodeSegmentMismatch, "outcome does not match any segment")
	ErrInvalidTransition    = New(CodeInvalidTransition, "action not available on this step")
	ErrSpinRejected         = New(CodeSpinRejected, "spin already in progress")
)

// CodeOf extracts the code of the first AppError in err's chain.
func CodeOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the kiosk-facing message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidTransition, CodeSpinRejected:
		return http.StatusConflict
	case CodeCatalogUnavailable, CodeReviewSubmitFailed, CodeSpinResolutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsCode(err error, code int) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
