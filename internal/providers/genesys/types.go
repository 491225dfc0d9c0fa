package genesys

import (
	"context"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

// Target identifies the tenant's Open Messaging integration for one call.
type Target struct {
	Region        string
	IntegrationID string
	AccessToken   string
	// Timeout bounds the call; it is clamped to the provider's allowed range.
	Timeout time.Duration
}

// Provider talks to the Genesys Cloud Open Messaging API.
type Provider interface {
	SendMessage(ctx context.Context, target Target, msg models.OpenMessage) (*models.OpenMessageResult, error)
	SendReceipt(ctx context.Context, target Target, receipt models.OpenReceipt) error
	MessageDetails(ctx context.Context, target Target, messageID string) (*models.MessageDetails, error)
}
