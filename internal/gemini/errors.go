package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrorKind classifies API failures.
type ErrorKind string

const (
	KindAuth           ErrorKind = "AUTH"
	KindRateLimited    ErrorKind = "RATE_LIMITED"
	KindTimeout        ErrorKind = "TIMEOUT"
	KindServerError    ErrorKind = "SERVER_ERROR"
	KindInvalidRequest ErrorKind = "INVALID_REQUEST"
)

// APIError describes a failed model call after classification.
type APIError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Attempts   int
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gemini: %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini: %s: %s", e.Kind, e.Message)
}

// Retryable reports whether the error is worth retrying. Only rate limits
// and server-side failures are; auth and invalid-request errors never
// succeed on a retry, and a timeout means the caller's deadline is gone.
func (e *APIError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindServerError
}

// classify maps transport and SDK errors onto the error taxonomy. An error
// that is already an APIError passes through as a copy.
func classify(err error) *APIError {
	var ae *APIError
	if errors.As(err, &ae) {
		cp := *ae
		return &cp
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &APIError{Kind: KindTimeout, Message: err.Error()}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		kind := KindServerError
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			kind = KindAuth
		case gerr.Code == http.StatusTooManyRequests:
			kind = KindRateLimited
		case gerr.Code >= 500:
			kind = KindServerError
		case gerr.Code >= 400:
			kind = KindInvalidRequest
		}
		return &APIError{Kind: kind, StatusCode: gerr.Code, Message: gerr.Message}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &APIError{Kind: KindTimeout, Message: err.Error()}
	}

	// Connection resets and other transport failures are retryable.
	return &APIError{Kind: KindServerError, Message: err.Error()}
}
