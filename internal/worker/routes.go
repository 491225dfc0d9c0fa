package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/providers/whatsapp"
	"github.com/shabibmr/waba-xypr-sub001/internal/state"
	"github.com/shabibmr/waba-xypr-sub001/internal/tenant"
)

// CredentialStore loads tenant credentials. *tenant.Client implements it.
type CredentialStore interface {
	GenesysCredentials(ctx context.Context, tenantID string) (tenant.GenesysCredentials, error)
	WhatsAppCredentials(ctx context.Context, tenantID string) (tenant.WhatsAppCredentials, error)
}

// ConversationStore resolves contact-center conversations. *state.Client
// implements it.
type ConversationStore interface {
	Conversation(ctx context.Context, conversationID string) (state.Conversation, error)
}

// WhatsAppPlan is the ordered set of Graph API sends for one message.
type WhatsAppPlan struct {
	Outputs []models.TransformedOutput
	Timeout time.Duration
	// CommunicationID is the contact-center leg the message belongs to, when
	// known.
	CommunicationID string
}

func invalid(reason string) error {
	return errclass.WrapValidation(errors.New(reason))
}

func timeoutOr(preferred, fallback time.Duration) time.Duration {
	if preferred > 0 {
		return preferred
	}
	return fallback
}

// sendWhatsApp delivers every output in order and stops at the first
// failure. Parts sent before a failure are sent again when the message is
// retried.
func sendWhatsApp(ctx context.Context, provider whatsapp.Provider, plan WhatsAppPlan, token string) ([]string, error) {
	ids := make([]string, 0, len(plan.Outputs))
	for i, out := range plan.Outputs {
		res, err := provider.Send(ctx, whatsapp.SendRequest{
			PhoneNumberID: out.Metadata.PhoneNumberID,
			AccessToken:   token,
			Message:       out.ChannelPayload,
			Timeout:       plan.Timeout,
		})
		if err != nil {
			return ids, fmt.Errorf("worker: send part %d/%d: %w", i+1, len(plan.Outputs), err)
		}
		ids = append(ids, res.MessageID)
	}
	return ids, nil
}

// sentEvents builds one "sent" correlation event per delivered WhatsApp part.
func sentEvents(direction, tenantID, conversationID, communicationID, originID string, providerIDs []string, now time.Time) []models.CorrelationEvent {
	events := make([]models.CorrelationEvent, 0, len(providerIDs))
	for _, id := range providerIDs {
		events = append(events, models.CorrelationEvent{
			TenantID:                tenantID,
			Direction:               direction,
			ExternalConversationID:  conversationID,
			ExternalCommunicationID: communicationID,
			OriginMessageID:         originID,
			ProviderMessageID:       id,
			Status:                  models.CorrelationStatusSent,
			Timestamp:               now,
		})
	}
	return events
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
