package whatsapp

import (
	"context"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

// SendRequest is a single Graph API message send on behalf of a tenant.
type SendRequest struct {
	PhoneNumberID string
	AccessToken   string
	Message       models.WAMessage
	// Timeout bounds the call; it is clamped to the provider's allowed range.
	Timeout time.Duration
}

// SendResult captures the provider response for a send.
type SendResult struct {
	MessageID string
	WaID      string
	Code      int
	Body      string
	Timestamp time.Time
}

// Provider delivers messages to WhatsApp users.
type Provider interface {
	Send(ctx context.Context, req SendRequest) (*SendResult, error)
}
