package models

// Open Messaging literals.
const (
	OpenDirectionInbound  = "Inbound"
	OpenDirectionOutbound = "Outbound"
	OpenTypeText          = "Text"
	OpenTypeStructured    = "Structured"
	OpenReceiptDelivered  = "Delivered"
	OpenReceiptRead       = "Read"
)

// OpenParty identifies one side of an Open Messaging exchange.
type OpenParty struct {
	ID        string `json:"id" validate:"required,max=256"`
	IDType    string `json:"idType,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// OpenChannel is the channel block of an Open Messaging message.
type OpenChannel struct {
	Platform  string         `json:"platform,omitempty"`
	Type      string         `json:"type,omitempty"`
	MessageID string         `json:"messageId,omitempty"`
	To        *OpenParty     `json:"to,omitempty"`
	From      *OpenParty     `json:"from,omitempty"`
	Time      string         `json:"time,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// OpenAttachment is a media attachment in Open Messaging content.
type OpenAttachment struct {
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
	Mime      string `json:"mime,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// OpenContent wraps a single content item.
type OpenContent struct {
	ContentType string          `json:"contentType"`
	Attachment  *OpenAttachment `json:"attachment,omitempty"`
}

// OpenMessage is the Open Messaging inbound message body.
type OpenMessage struct {
	ID        string        `json:"id,omitempty"`
	Channel   OpenChannel   `json:"channel"`
	Type      string        `json:"type"`
	Text      string        `json:"text,omitempty"`
	Content   []OpenContent `json:"content,omitempty"`
	Direction string        `json:"direction"`
}

// OpenReceipt is the Open Messaging receipt body.
type OpenReceipt struct {
	ID        string      `json:"id"`
	Channel   OpenChannel `json:"channel"`
	Status    string      `json:"status"`
	Direction string      `json:"direction"`
}

// OpenMessageResult is the subset of the inbound-message response we use.
type OpenMessageResult struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId,omitempty"`
}

// MessageDetails is the subset of the conversation message detail response
// used to resolve correlation identifiers.
type MessageDetails struct {
	ID              string `json:"id"`
	ConversationID  string `json:"conversationId"`
	CommunicationID string `json:"communicationId"`
	Status          string `json:"status,omitempty"`
}
