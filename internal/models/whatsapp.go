package models

// Kind is a WhatsApp message type.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
)

// WAText is the text object of a Graph API message.
type WAText struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

// WAMedia is the media object of a Graph API message. Caption is not
// allowed on audio and Filename only applies to documents.
type WAMedia struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// WAMessage is the Graph API send-message body.
type WAMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             Kind     `json:"type"`
	Text             *WAText  `json:"text,omitempty"`
	Image            *WAMedia `json:"image,omitempty"`
	Video            *WAMedia `json:"video,omitempty"`
	Document         *WAMedia `json:"document,omitempty"`
	Audio            *WAMedia `json:"audio,omitempty"`
}

// Media returns the media object matching the message type, if any.
func (m *WAMessage) Media() *WAMedia {
	switch m.Type {
	case KindImage:
		return m.Image
	case KindVideo:
		return m.Video
	case KindDocument:
		return m.Document
	case KindAudio:
		return m.Audio
	default:
		return nil
	}
}

// OutputMetadata travels with each transformed unit.
type OutputMetadata struct {
	TenantID      string `json:"tenantId"`
	PhoneNumberID string `json:"phoneNumberId"`
	InternalID    string `json:"internalId"`
	CorrelationID string `json:"correlationId"`
}

// TransformedOutput is one independently deliverable WhatsApp message.
type TransformedOutput struct {
	Metadata       OutputMetadata `json:"metadata"`
	ChannelPayload WAMessage      `json:"channelPayload"`
}
