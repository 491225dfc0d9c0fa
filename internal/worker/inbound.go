package worker

import (
	"context"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/config"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/providers/genesys"
	"github.com/shabibmr/waba-xypr-sub001/internal/validator"
)

// DefaultCorrelationAttempts applies when InboundRoute.CorrelationAttempts
// is unset.
const DefaultCorrelationAttempts = 3

// InboundPlan addresses the tenant's Open Messaging integration. Deliver
// fills in the token and the send result so Correlate can reuse them.
type InboundPlan struct {
	Target genesys.Target
	Result *models.OpenMessageResult
}

// InboundRoute forwards WhatsApp user messages to the contact center and
// resolves the resulting conversation identifiers.
type InboundRoute struct {
	Credentials    CredentialStore
	Provider       genesys.Provider
	DefaultTimeout time.Duration
	// CorrelationAttempts and CorrelationDelay bound the message details
	// poll that follows a successful send.
	CorrelationAttempts int
	CorrelationDelay    time.Duration
	Logger              zerolog.Logger
	Now                 func() time.Time
}

// Parse implements Route.
func (r *InboundRoute) Parse(raw []byte) (Job[models.InboundMessage], error) {
	res := validator.Inbound(raw)
	if !res.Valid {
		return Job[models.InboundMessage]{}, invalid(res.Reason)
	}
	meta := res.Data.Metadata
	return Job[models.InboundMessage]{
		TenantID:      meta.TenantID,
		DedupID:       meta.ExternalMessageID,
		InternalID:    meta.InternalID,
		CorrelationID: meta.CorrelationID,
		Message:       res.Data,
	}, nil
}

// Prepare implements Route.
func (r *InboundRoute) Prepare(ctx context.Context, job Job[models.InboundMessage]) (*InboundPlan, error) {
	creds, err := r.Credentials.GenesysCredentials(ctx, job.TenantID)
	if err != nil {
		return nil, err
	}
	return &InboundPlan{Target: genesys.Target{
		Region:        creds.Region,
		IntegrationID: creds.IntegrationID,
		Timeout:       timeoutOr(creds.Timeout(), r.DefaultTimeout),
	}}, nil
}

// Deliver implements Route.
func (r *InboundRoute) Deliver(ctx context.Context, job Job[models.InboundMessage], plan *InboundPlan, token string) ([]string, error) {
	plan.Target.AccessToken = token
	res, err := r.Provider.SendMessage(ctx, plan.Target, job.Message.ChannelPayload)
	if err != nil {
		return nil, err
	}
	plan.Result = res
	return []string{res.ID}, nil
}

// Correlate implements Route. The conversation identifiers are polled a
// bounded number of times with a fixed delay; when every attempt fails the
// event is still emitted with whatever is known.
func (r *InboundRoute) Correlate(ctx context.Context, job Job[models.InboundMessage], plan *InboundPlan, _ []string) []models.CorrelationEvent {
	event := models.CorrelationEvent{
		TenantID:        job.TenantID,
		Direction:       config.DirectionInbound,
		OriginMessageID: job.DedupID,
		Status:          models.CorrelationStatusDelivered,
		Timestamp:       now(r.Now),
	}
	if plan.Result != nil {
		event.ProviderMessageID = plan.Result.ID
		event.ExternalConversationID = plan.Result.ConversationID
		if details := r.pollDetails(ctx, job, plan); details != nil {
			event.ExternalCommunicationID = details.CommunicationID
			if details.ConversationID != "" {
				event.ExternalConversationID = details.ConversationID
			}
		}
	}
	return []models.CorrelationEvent{event}
}

func (r *InboundRoute) pollDetails(ctx context.Context, job Job[models.InboundMessage], plan *InboundPlan) *models.MessageDetails {
	logger := r.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	attempts := r.CorrelationAttempts
	if attempts < 1 {
		attempts = DefaultCorrelationAttempts
	}
	log := logger.With().
		Str("tenant_id", job.TenantID).
		Str("external_id", job.DedupID).
		Str("genesys_message_id", plan.Result.ID).
		Logger()
	for attempt := 1; attempt <= attempts; attempt++ {
		details, err := r.Provider.MessageDetails(ctx, plan.Target, plan.Result.ID)
		if err == nil && details != nil && details.CommunicationID != "" {
			log.Debug().Int("attempt", attempt).Msg("worker: correlation ids resolved")
			return details
		}
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", attempts).Msg("worker: correlation lookup failed")
		if attempt < attempts && !wait(ctx, r.CorrelationDelay) {
			break
		}
	}
	log.Warn().Msg("worker: correlation ids unresolved, publishing without communication id")
	return nil
}
