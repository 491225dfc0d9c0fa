package errclass

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// Classification is the outcome of classifying an error.
type Classification struct {
	Category  Category
	Retryable bool
}

// Classify maps err to a category and retry decision. Typed errors and
// sentinels win; otherwise the message is matched against the substrings
// produced by the libraries the pipeline talks through. Anything unknown is
// treated as transient so an unexpected failure is retried rather than lost.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Category: CategoryTransient, Retryable: true}
	}

	switch {
	case errors.Is(err, ErrFatal):
		return Classification{Category: CategoryFatal}
	case errors.Is(err, ErrValidation):
		return Classification{Category: CategoryValidation}
	case errors.Is(err, ErrConfiguration):
		return Classification{Category: CategoryConfiguration}
	case errors.Is(err, ErrAuthExpired):
		return Classification{Category: CategoryAuthExpired, Retryable: true}
	case errors.Is(err, ErrClient):
		return Classification{Category: CategoryClient}
	case errors.Is(err, ErrTransient):
		return Classification{Category: CategoryTransient, Retryable: true}
	}

	if status := StatusCode(err); status != 0 {
		return ClassifyStatus(status)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Classification{Category: CategoryTransient, Retryable: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Classification{Category: CategoryTransient, Retryable: true}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, validationHints):
		return Classification{Category: CategoryValidation}
	case containsAny(msg, configurationHints):
		return Classification{Category: CategoryConfiguration}
	case containsAny(msg, transientHints):
		return Classification{Category: CategoryTransient, Retryable: true}
	}
	return Classification{Category: CategoryTransient, Retryable: true}
}

// ClassifyStatus applies the HTTP status policy: 401 is retryable after the
// token is dropped, 429 and 5xx are transient, the rest of 4xx (408
// included) is permanent.
func ClassifyStatus(status int) Classification {
	switch {
	case status == http.StatusUnauthorized:
		return Classification{Category: CategoryAuthExpired, Retryable: true}
	case status == http.StatusTooManyRequests:
		return Classification{Category: CategoryTransient, Retryable: true}
	case status >= 400 && status < 500:
		return Classification{Category: CategoryClient}
	default:
		return Classification{Category: CategoryTransient, Retryable: true}
	}
}

var validationHints = []string{
	"validation",
	"invalid payload",
	"malformed",
	"cannot unmarshal",
	"invalid character",
	"unexpected end of json",
	"schema",
}

var configurationHints = []string{
	"configuration",
	"not configured",
	"missing integration",
	"credentials not found",
}

var transientHints = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"dns",
	"eof",
	"redis",
	"amqp",
	"kafka",
	"channel/connection is not open",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"too many requests",
}

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}
