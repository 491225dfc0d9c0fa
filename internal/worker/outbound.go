package worker

import (
	"context"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/config"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/providers/whatsapp"
	"github.com/shabibmr/waba-xypr-sub001/internal/transformer"
	"github.com/shabibmr/waba-xypr-sub001/internal/validator"
)

// OutboundRoute delivers contact-center agent messages to WhatsApp users.
type OutboundRoute struct {
	Credentials    CredentialStore
	Transformer    *transformer.Transformer
	Provider       whatsapp.Provider
	DefaultTimeout time.Duration
	Now            func() time.Time
}

// Parse implements Route.
func (r *OutboundRoute) Parse(raw []byte) (Job[models.OutboundMessage], error) {
	res := validator.Outbound(raw)
	if !res.Valid {
		return Job[models.OutboundMessage]{}, invalid(res.Reason)
	}
	msg := res.Data
	job := Job[models.OutboundMessage]{
		TenantID:      msg.TenantID,
		DedupID:       msg.GenesysMessageID,
		InternalID:    msg.InternalID,
		CorrelationID: msg.CorrelationID,
		Message:       msg,
	}
	if job.DedupID == "" {
		job.DedupID = msg.InternalID
	}
	if job.CorrelationID == "" {
		job.CorrelationID = msg.InternalID
	}
	return job, nil
}

// Prepare implements Route.
func (r *OutboundRoute) Prepare(ctx context.Context, job Job[models.OutboundMessage]) (WhatsAppPlan, error) {
	creds, err := r.Credentials.WhatsAppCredentials(ctx, job.TenantID)
	if err != nil {
		return WhatsAppPlan{}, err
	}
	msg := job.Message
	outputs, err := r.Transformer.Transform(transformer.Input{
		TenantID:      job.TenantID,
		PhoneNumberID: msg.PhoneNumberID,
		InternalID:    job.InternalID,
		CorrelationID: job.CorrelationID,
		To:            msg.WaID,
		Payload:       msg.Payload,
	})
	if err != nil {
		return WhatsAppPlan{}, err
	}
	return WhatsAppPlan{Outputs: outputs, Timeout: timeoutOr(creds.Timeout(), r.DefaultTimeout)}, nil
}

// Deliver implements Route.
func (r *OutboundRoute) Deliver(ctx context.Context, _ Job[models.OutboundMessage], plan WhatsAppPlan, token string) ([]string, error) {
	return sendWhatsApp(ctx, r.Provider, plan, token)
}

// Correlate implements Route.
func (r *OutboundRoute) Correlate(_ context.Context, job Job[models.OutboundMessage], _ WhatsAppPlan, providerIDs []string) []models.CorrelationEvent {
	msg := job.Message
	conversationID := msg.ExternalConversationID
	if conversationID == "" {
		conversationID = msg.ConversationID
	}
	return sentEvents(config.DirectionOutbound, job.TenantID, conversationID, "", job.DedupID, providerIDs, now(r.Now))
}

func now(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}
