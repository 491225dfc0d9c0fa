package models

import (
	"encoding/json"
	"time"
)

// DLQErrorDetails describes why a message was dead-lettered.
type DLQErrorDetails struct {
	ErrorType             string    `json:"error_type"`
	ErrorMessage          string    `json:"error_message"`
	Stack                 string    `json:"stack,omitempty"`
	RetryCount            int       `json:"retry_count"`
	FirstAttemptTimestamp time.Time `json:"first_attempt_timestamp"`
	LastAttemptTimestamp  time.Time `json:"last_attempt_timestamp"`
}

// DLQMetadata identifies the message and the service that gave up on it.
type DLQMetadata struct {
	TenantID       string    `json:"tenant_id,omitempty"`
	InternalID     string    `json:"internal_id,omitempty"`
	Direction      string    `json:"direction"`
	DLQTimestamp   time.Time `json:"dlq_timestamp"`
	Service        string    `json:"service"`
	ServiceVersion string    `json:"service_version"`
}

// DLQRecord is the terminal failure record published to a dead-letter queue.
// OriginalMessage holds the raw body verbatim when it is valid JSON and a
// JSON string otherwise.
type DLQRecord struct {
	OriginalMessage json.RawMessage `json:"original_message"`
	ErrorDetails    DLQErrorDetails `json:"error_details"`
	Metadata        DLQMetadata     `json:"metadata"`
}
