// Package errclass classifies pipeline failures into the categories that
// decide between requeueing a message and routing it to a dead-letter queue.
package errclass

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Category names a failure class. The string form is what lands in DLQ
// records as error_type.
type Category string

const (
	CategoryValidation    Category = "validation_error"
	CategoryConfiguration Category = "configuration_error"
	CategoryClient        Category = "client_error"
	CategoryAuthExpired   Category = "auth_expired"
	CategoryTransient     Category = "transient_error"
	CategoryFatal         Category = "fatal_error"
)

// Sentinel errors used to tag failures with a category. Wrap helpers attach
// them so errors.Is can recover the category after further wrapping.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrClient        = errors.New("client error")
	ErrAuthExpired   = errors.New("auth expired")
	ErrTransient     = errors.New("transient error")
	ErrFatal         = errors.New("fatal error")
)

// WrapValidation marks err as a validation failure.
func WrapValidation(err error) error { return wrap(ErrValidation, err) }

// WrapConfiguration marks err as a tenant configuration failure.
func WrapConfiguration(err error) error { return wrap(ErrConfiguration, err) }

// WrapClient marks err as a permanent rejection by the remote API.
func WrapClient(err error) error { return wrap(ErrClient, err) }

// WrapTransient marks err as retryable.
func WrapTransient(err error) error { return wrap(ErrTransient, err) }

// WrapFatal marks err as a programming error that must not be retried.
func WrapFatal(err error) error { return wrap(ErrFatal, err) }

func wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// maxBodyChars bounds how much of a remote response body is kept on an
// HTTPError.
const maxBodyChars = 512

// HTTPError reports a non-2xx response from an external API.
type HTTPError struct {
	Op         string
	StatusCode int
	Body       string
}

// NewHTTPError builds an HTTPError, truncating the body.
func NewHTTPError(op string, status int, body string) *HTTPError {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) > maxBodyChars {
		body = string([]rune(body)[:maxBodyChars])
	}
	return &HTTPError{Op: op, StatusCode: status, Body: body}
}

func (e *HTTPError) Error() string {
	msg := e.Body
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Op == "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, msg)
}

// StatusCode extracts the HTTP status from err, or 0 when err carries none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
