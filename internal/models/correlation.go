package models

import "time"

// Correlation event statuses.
const (
	CorrelationStatusSent      = "sent"
	CorrelationStatusDelivered = "delivered"
)

// CorrelationEvent links provider-side identifiers back to an internal
// message. The state-persistence service consumes these to build its mapping.
type CorrelationEvent struct {
	TenantID                string    `json:"tenantId"`
	Direction               string    `json:"direction"`
	ExternalConversationID  string    `json:"externalConversationId"`
	ExternalCommunicationID string    `json:"externalCommunicationId"`
	OriginMessageID         string    `json:"originMessageId"`
	ProviderMessageID       string    `json:"providerMessageId,omitempty"`
	Status                  string    `json:"status"`
	Timestamp               time.Time `json:"timestamp"`
	CorrelationID           string    `json:"correlationId"`
}
