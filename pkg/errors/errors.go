package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes the core distinguishes. Callers
// test with errors.Is; no raw network error crosses the store or
// orchestrator boundary without being wrapped into one of these.
var (
	// ErrUnavailable marks a transient network failure: the backend could
	// not be reached or answered 5xx. Safe to retry.
	ErrUnavailable = errors.New("service unavailable")

	// ErrRejected marks a request the backend declined (out of stock,
	// bad state). Retrying the identical request will not help.
	ErrRejected = errors.New("request rejected")

	// ErrBusy marks a concurrency conflict: another operation on the same
	// cart or checkout is still in flight. Callers may wait and retry.
	ErrBusy = errors.New("operation in progress")

	// ErrInvalidInput marks input rejected locally before any request was sent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("resource not found")

	// ErrVerificationRejected marks a payment the gateway claimed succeeded
	// but the backend refused to verify (signature or amount mismatch,
	// replay). Distinct from ErrUnavailable: it may indicate a forged
	// client claim rather than an infrastructure problem.
	ErrVerificationRejected = errors.New("payment verification rejected")

	// ErrGatewayFailed marks a failure reported by the payment widget itself.
	ErrGatewayFailed = errors.New("payment gateway failure")

	// ErrInternal marks an unexpected internal error.
	ErrInternal = errors.New("internal error")
)

// AppError is a classified application error carrying a stable code, a
// human-readable message and the HTTP status the failure maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Unavailable creates an error for a transient network failure against the
// named endpoint, wrapping the underlying cause.
func Unavailable(endpoint string, err error) *AppError {
	return &AppError{
		Code:    "UNAVAILABLE",
		Message: fmt.Sprintf("%s is unreachable", endpoint),
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrUnavailable, err),
	}
}

// Rejected creates an error for a request the backend declined.
func Rejected(message string) *AppError {
	return &AppError{
		Code:    "REJECTED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrRejected,
	}
}

// Busy creates an error for a concurrency conflict.
func Busy(message string) *AppError {
	return &AppError{
		Code:    "BUSY",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrBusy,
	}
}

// InvalidInput creates an error for input rejected before any network call.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// NotFound creates an error for a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// VerificationRejected creates an error for a payment claim the backend
// refused to verify.
func VerificationRejected(message string) *AppError {
	return &AppError{
		Code:    "VERIFICATION_REJECTED",
		Message: message,
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrVerificationRejected,
	}
}

// GatewayFailed creates an error for a failure reported by the payment widget.
func GatewayFailed(message string) *AppError {
	return &AppError{
		Code:    "GATEWAY_FAILED",
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     ErrGatewayFailed,
	}
}

// Internal creates an error for an unexpected internal failure.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrInternal, err),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code the given error maps to.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrRejected), errors.Is(err, ErrVerificationRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrGatewayFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
