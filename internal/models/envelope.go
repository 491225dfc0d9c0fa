package models

import "encoding/json"

// Envelope type literal carried by outbound-ready messages.
const EnvelopeTypeMessage = "message"

// Media describes an attachment referenced by URL.
type Media struct {
	URL      string `json:"url" validate:"required,httpurl,max=2048"`
	MIMEType string `json:"mime_type" validate:"required,max=255"`
	Filename string `json:"filename,omitempty" validate:"omitempty,max=240"`
}

// Payload is the provider-neutral content of a message.
type Payload struct {
	Text  string `json:"text,omitempty"`
	Media *Media `json:"media,omitempty"`
}

// OutboundMessage is taken off the outbound-ready queue: an agent message
// from the contact center that must reach a WhatsApp user.
type OutboundMessage struct {
	InternalID             string      `json:"internalId" validate:"required,uuid4id"`
	TenantID               string      `json:"tenantId" validate:"required,max=128"`
	ConversationID         string      `json:"conversationId" validate:"required,max=128"`
	ExternalConversationID string      `json:"externalConversationId,omitempty" validate:"omitempty,max=128"`
	GenesysMessageID       string      `json:"genesysMessageId,omitempty" validate:"omitempty,max=128"`
	WaID                   string      `json:"waId" validate:"required,waid"`
	PhoneNumberID          string      `json:"phoneNumberId" validate:"required,numericid"`
	CorrelationID          string      `json:"correlationId,omitempty" validate:"omitempty,max=128"`
	Timestamp              json.Number `json:"timestamp"`
	Type                   string      `json:"type"`
	Payload                Payload     `json:"payload"`
}

// InboundMetadata carries routing data for an inbound message.
type InboundMetadata struct {
	TenantID          string `json:"tenantId" validate:"required,max=128"`
	ExternalMessageID string `json:"externalMessageId" validate:"required,max=256"`
	CorrelationID     string `json:"correlationId" validate:"required,max=128"`
	InternalID        string `json:"internalId,omitempty" validate:"omitempty,uuid4id"`
}

// InboundMessage is taken off the inbound-ready queue: a WhatsApp user
// message already shaped for Open Messaging.
type InboundMessage struct {
	Metadata       InboundMetadata `json:"metadata"`
	ChannelPayload OpenMessage     `json:"channelPayload"`
}

// StatusMessage is taken off the status queue: a WhatsApp delivery receipt
// that must be mirrored on the contact-center side.
type StatusMessage struct {
	TenantID               string      `json:"tenantId" validate:"required,max=128"`
	ExternalConversationID string      `json:"externalConversationId" validate:"required,max=128"`
	OriginalMessageID      string      `json:"originalMessageId" validate:"required,max=256"`
	Status                 string      `json:"status" validate:"required,max=32"`
	WaID                   string      `json:"waId,omitempty" validate:"omitempty,waid"`
	CorrelationID          string      `json:"correlationId,omitempty" validate:"omitempty,max=128"`
	Timestamp              json.Number `json:"timestamp"`
}

// WidgetMedia is an attachment sent from the agent widget. Type is a MIME type.
type WidgetMedia struct {
	URL  string `json:"url" validate:"required,httpurl,max=2048"`
	Type string `json:"type" validate:"required,max=255"`
}

// WidgetMessage is taken off the widget queue: an agent reply typed into the
// embedded widget that must reach the WhatsApp user of a conversation.
type WidgetMessage struct {
	TenantID       string       `json:"tenantId" validate:"required,max=128"`
	ConversationID string       `json:"conversationId" validate:"required,max=128"`
	Message        string       `json:"message,omitempty"`
	Media          *WidgetMedia `json:"media,omitempty"`
	IntegrationID  string       `json:"integrationId,omitempty" validate:"omitempty,max=128"`
	MessageID      string       `json:"messageId,omitempty" validate:"omitempty,max=256"`
	CorrelationID  string       `json:"correlationId,omitempty" validate:"omitempty,max=128"`
}
