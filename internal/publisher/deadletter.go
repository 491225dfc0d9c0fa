package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

// Failure describes why and where a delivery is being dead-lettered.
type Failure struct {
	Queue      string
	Direction  string
	TenantID   string
	InternalID string
	Err        error
}

// DeadLetterRouter publishes DLQ records. It never fails the caller: publish
// errors are logged and the original delivery is still acknowledged.
type DeadLetterRouter struct {
	pub            queue.Publisher
	service        string
	serviceVersion string
	logger         zerolog.Logger
	now            func() time.Time
}

// DeadLetterOption customises a DeadLetterRouter.
type DeadLetterOption func(*DeadLetterRouter)

// WithDeadLetterClock overrides the clock.
func WithDeadLetterClock(now func() time.Time) DeadLetterOption {
	return func(r *DeadLetterRouter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewDeadLetterRouter constructs a DeadLetterRouter stamping records with the
// service identity.
func NewDeadLetterRouter(pub queue.Publisher, service, version string, logger zerolog.Logger, opts ...DeadLetterOption) (*DeadLetterRouter, error) {
	if pub == nil {
		return nil, errors.New("dead letter router: publisher is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	r := &DeadLetterRouter{
		pub:            pub,
		service:        service,
		serviceVersion: version,
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Route builds a DLQ record for d and publishes it to f.Queue.
func (r *DeadLetterRouter) Route(ctx context.Context, d *queue.Delivery, f Failure) {
	record := r.Record(d, f)
	log := r.logger.With().
		Str("dlq", f.Queue).
		Str("direction", f.Direction).
		Str("tenant_id", f.TenantID).
		Str("error_type", record.ErrorDetails.ErrorType).
		Logger()

	payload, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Msg("publisher: marshal dlq record failed, dropping message")
		return
	}
	msg := queue.Message{
		Body:          payload,
		CorrelationID: d.CorrelationID,
		Key:           f.TenantID,
		Headers:       map[string]string{queue.HeaderContentType: "application/json"},
	}
	if err := r.pub.Publish(ctx, f.Queue, msg); err != nil {
		log.Error().Err(err).Msg("publisher: dlq publish failed, dropping message")
		return
	}
	log.Warn().Str("error", record.ErrorDetails.ErrorMessage).Msg("publisher: message dead-lettered")
}

// Record builds the DLQ record for a failed delivery.
func (r *DeadLetterRouter) Record(d *queue.Delivery, f Failure) models.DLQRecord {
	now := r.now().UTC()
	first, ok := d.FirstAttempt()
	if !ok {
		first = now
	}
	category := errclass.Classify(f.Err).Category
	message := ""
	if f.Err != nil {
		message = f.Err.Error()
	}
	return models.DLQRecord{
		OriginalMessage: originalMessage(d.Body),
		ErrorDetails: models.DLQErrorDetails{
			ErrorType:             string(category),
			ErrorMessage:          message,
			RetryCount:            d.RetryCount(),
			FirstAttemptTimestamp: first,
			LastAttemptTimestamp:  now,
		},
		Metadata: models.DLQMetadata{
			TenantID:       f.TenantID,
			InternalID:     f.InternalID,
			Direction:      f.Direction,
			DLQTimestamp:   now,
			Service:        r.service,
			ServiceVersion: r.serviceVersion,
		},
	}
}

func originalMessage(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return append(json.RawMessage(nil), body...)
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
