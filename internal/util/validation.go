package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUUID is returned when a value is not a UUID v4.
	ErrInvalidUUID = errors.New("invalid uuid v4")
	// ErrInvalidTimestamp indicates the value is not a plausible epoch-seconds number.
	ErrInvalidTimestamp = errors.New("invalid epoch timestamp")
	// ErrInvalidWaID is returned when a WhatsApp user id is not E.164 digits.
	ErrInvalidWaID = errors.New("invalid whatsapp id")
	// ErrInvalidNumericID is returned when a phone/line identifier is not numeric.
	ErrInvalidNumericID = errors.New("invalid numeric id")
	// ErrInvalidURL indicates that a URL failed validation.
	ErrInvalidURL = errors.New("invalid url")
)

// Epoch-seconds window accepted for envelope timestamps: 2001-09-09 up to
// 2286-11-20. Values outside are almost always milliseconds or garbage.
const (
	MinEpochSeconds = 1_000_000_000
	MaxEpochSeconds = 10_000_000_000
)

var (
	waIDPattern      = regexp.MustCompile(`^[1-9]\d{6,14}$`)
	numericIDPattern = regexp.MustCompile(`^\d{1,32}$`)
)

// ParseUUIDv4 parses and validates a UUID string, ensuring it is version 4.
func ParseUUIDv4(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.UUID{}, fmt.Errorf("%w: value is empty", ErrInvalidUUID)
	}

	u, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	if u.Version() != 4 {
		return uuid.UUID{}, fmt.Errorf("%w: expected version 4", ErrInvalidUUID)
	}
	return u, nil
}

// IsWaID reports whether value is an E.164 number without the leading plus.
func IsWaID(value string) bool {
	return waIDPattern.MatchString(value)
}

// IsNumericID reports whether value is a numeric identifier string.
func IsNumericID(value string) bool {
	return numericIDPattern.MatchString(value)
}

// ParseEpochSeconds validates a JSON number as a finite Unix timestamp in
// seconds within the accepted window.
func ParseEpochSeconds(value json.Number) (float64, error) {
	raw := strings.TrimSpace(value.String())
	if raw == "" {
		return 0, fmt.Errorf("%w: value is empty", ErrInvalidTimestamp)
	}
	f, err := value.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidTimestamp)
	}
	if f < MinEpochSeconds || f >= MaxEpochSeconds {
		return 0, fmt.Errorf("%w: %s outside accepted range", ErrInvalidTimestamp, raw)
	}
	return f, nil
}

// EnsureMaxRunes ensures a string is not longer than the provided rune count.
func EnsureMaxRunes(field, value string, max int) error {
	if max <= 0 {
		return nil
	}
	if n := utf8.RuneCountInString(value); n > max {
		return fmt.Errorf("%s exceeds maximum length of %d characters (got %d)", field, max, n)
	}
	return nil
}

// ValidateHTTPURL ensures the provided string is a valid HTTP or HTTPS URL.
func ValidateHTTPURL(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return trimmed, nil
}
