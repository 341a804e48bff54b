package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the ingestion and query paths. Pipeline code wraps
// these with context via %w so callers can branch with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrJobNotFound        = errors.New("job not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrExtractionEmpty    = errors.New("extraction produced no content")
	ErrEmbeddingMismatch  = errors.New("embedding count mismatch")
	ErrProviderTransient  = errors.New("provider temporarily unavailable")
	ErrProviderPermanent  = errors.New("provider request failed")
	ErrPersistence        = errors.New("persistence failure")
)

// AppError carries an HTTP status alongside a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...), StatusCode: statusCode}
}

// HTTPStatusCode maps an error to the status the API should return.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrProviderTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Transient reports whether the error is worth retrying.
func Transient(err error) bool {
	return errors.Is(err, ErrProviderTransient)
}
