package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies failures of an external generation service.
type ErrorKind string

const (
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindAuth is a rejected or missing credential (401/403).
	KindAuth ErrorKind = "auth"

	// KindRateLimited is a throttled request (429).
	KindRateLimited ErrorKind = "rate_limited"

	// KindTransport covers network failures, 5xx responses and unreadable
	// or malformed response bodies.
	KindTransport ErrorKind = "transport"

	// KindBadRequest is a request the service refused as invalid.
	KindBadRequest ErrorKind = "bad_request"
)

// ServiceError is the error returned by text and image generation clients.
type ServiceError struct {
	Kind ErrorKind

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int

	err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Transient reports whether the same request may succeed if retried.
func (e *ServiceError) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindTransport:
		return true
	}
	return false
}

// NewServiceError wraps err with a kind.
func NewServiceError(kind ErrorKind, err error) error {
	return &ServiceError{Kind: kind, err: err}
}

// NewTransientError wraps an error as a retryable transport failure.
func NewTransientError(err error) error {
	return &ServiceError{Kind: KindTransport, err: err}
}

// NewFatalError wraps an error as a non-retryable bad request.
func NewFatalError(err error) error {
	return &ServiceError{Kind: KindBadRequest, err: err}
}

// IsTransient returns true if the error is transient and should be retried.
func IsTransient(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Transient()
}

// IsFatal returns true if the error is a service error that must not be retried.
func IsFatal(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && !se.Transient()
}

// KindOf returns the kind of a service error. Context deadline errors are
// reported as timeouts; any other error is a transport failure. Nil yields "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindTransport
}

// ClassifyTransportError converts an error from http.Client.Do into a
// ServiceError.
func ClassifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewServiceError(KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewServiceError(KindTimeout, err)
	}
	return NewServiceError(KindTransport, err)
}

// ClassifyHTTPError determines the kind of a non-200 response. service
// names the API in the error message.
func ClassifyHTTPError(service string, statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("%s API error (status %d): %s", service, statusCode, bodyStr)

	var kind ErrorKind
	switch {
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusGatewayTimeout:
		kind = KindTimeout
	case statusCode >= 500:
		kind = KindTransport
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		kind = KindAuth
	default:
		kind = KindBadRequest
	}

	return &ServiceError{Kind: kind, StatusCode: statusCode, err: err}
}
