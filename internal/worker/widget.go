package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shabibmr/waba-xypr-sub001/internal/config"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/providers/whatsapp"
	"github.com/shabibmr/waba-xypr-sub001/internal/transformer"
	"github.com/shabibmr/waba-xypr-sub001/internal/validator"
)

// WidgetRoute delivers replies typed into the agent widget. The WhatsApp
// recipient comes from the conversation mapping.
type WidgetRoute struct {
	Credentials    CredentialStore
	Conversations  ConversationStore
	Transformer    *transformer.Transformer
	Provider       whatsapp.Provider
	DefaultTimeout time.Duration
	Now            func() time.Time
}

// Parse implements Route. Replies without a message id are deduplicated on
// the transport message id, if any.
func (r *WidgetRoute) Parse(raw []byte) (Job[models.WidgetMessage], error) {
	res := validator.Widget(raw)
	if !res.Valid {
		return Job[models.WidgetMessage]{}, invalid(res.Reason)
	}
	msg := res.Data
	job := Job[models.WidgetMessage]{
		TenantID:      msg.TenantID,
		DedupID:       msg.MessageID,
		CorrelationID: msg.CorrelationID,
		Message:       msg,
	}
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}
	return job, nil
}

// Prepare implements Route.
func (r *WidgetRoute) Prepare(ctx context.Context, job Job[models.WidgetMessage]) (WhatsAppPlan, error) {
	msg := job.Message
	conv, err := r.Conversations.Conversation(ctx, msg.ConversationID)
	if err != nil {
		return WhatsAppPlan{}, err
	}
	creds, err := r.Credentials.WhatsAppCredentials(ctx, job.TenantID)
	if err != nil {
		return WhatsAppPlan{}, err
	}
	phoneNumberID := conv.PhoneNumberID
	if phoneNumberID == "" {
		phoneNumberID = creds.PhoneNumberID
	}
	outputs, err := r.Transformer.Transform(transformer.Input{
		TenantID:      job.TenantID,
		PhoneNumberID: phoneNumberID,
		InternalID:    conv.InternalID,
		CorrelationID: job.CorrelationID,
		To:            conv.WaID,
		Payload:       validator.WidgetPayload(msg),
	})
	if err != nil {
		return WhatsAppPlan{}, err
	}
	return WhatsAppPlan{
		Outputs:         outputs,
		Timeout:         timeoutOr(creds.Timeout(), r.DefaultTimeout),
		CommunicationID: conv.CommunicationID,
	}, nil
}

// Deliver implements Route.
func (r *WidgetRoute) Deliver(ctx context.Context, _ Job[models.WidgetMessage], plan WhatsAppPlan, token string) ([]string, error) {
	return sendWhatsApp(ctx, r.Provider, plan, token)
}

// Correlate implements Route.
func (r *WidgetRoute) Correlate(_ context.Context, job Job[models.WidgetMessage], plan WhatsAppPlan, providerIDs []string) []models.CorrelationEvent {
	return sentEvents(config.DirectionWidget, job.TenantID, job.Message.ConversationID, plan.CommunicationID, job.DedupID, providerIDs, now(r.Now))
}
