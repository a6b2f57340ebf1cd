package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Per-record failures: recovered locally, logged, the batch continues.
	ErrMalformedRecord = errors.New("malformed record")
	ErrMalformedField  = errors.New("malformed field")

	// Run-level failures: surfaced to the caller, no partial result.
	ErrSourceUnreadable      = errors.New("input source unreadable")
	ErrDestinationUnwritable = errors.New("output destination unwritable")

	ErrFrozen       = errors.New("index builder is frozen")
	ErrUnknownIndex = errors.New("unknown index")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrTimeout      = errors.New("operation timed out")
)

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
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// IsRecordLevel reports whether err only affects a single input record.
func IsRecordLevel(err error) bool {
	return errors.Is(err, ErrMalformedRecord) || errors.Is(err, ErrMalformedField)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrUnknownIndex):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedRecord), errors.Is(err, ErrMalformedField):
		return http.StatusBadRequest
	case errors.Is(err, ErrFrozen):
		return http.StatusConflict
	case errors.Is(err, ErrSourceUnreadable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
