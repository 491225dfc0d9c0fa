// Package publisher writes the pipeline's output records: correlation events
// for the state service and dead-letter records for operators.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

var errPublisherNotInitialised = errors.New("publisher: not initialised")

// CorrelationPublisher emits correlation events onto the durable correlation
// queue.
type CorrelationPublisher struct {
	pub    queue.Publisher
	queue  string
	logger zerolog.Logger
}

// NewCorrelationPublisher constructs a CorrelationPublisher.
func NewCorrelationPublisher(pub queue.Publisher, queueName string, logger zerolog.Logger) (*CorrelationPublisher, error) {
	if pub == nil {
		return nil, errors.New("correlation publisher: publisher is required")
	}
	if queueName == "" {
		return nil, errors.New("correlation publisher: queue name is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &CorrelationPublisher{pub: pub, queue: queueName, logger: logger}, nil
}

// Publish writes event with its correlation id as a transport property.
// Errors are returned so the caller can retry the message.
func (p *CorrelationPublisher) Publish(ctx context.Context, event models.CorrelationEvent) error {
	if p == nil || p.pub == nil {
		return errPublisherNotInitialised
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("correlation publisher: marshal event: %w", err)
	}
	msg := queue.Message{
		Body:          payload,
		CorrelationID: event.CorrelationID,
		Key:           event.TenantID,
		Headers:       map[string]string{queue.HeaderContentType: "application/json"},
	}
	if err := p.pub.Publish(ctx, p.queue, msg); err != nil {
		return fmt.Errorf("correlation publisher: publish: %w", err)
	}
	p.logger.Debug().
		Str("tenant_id", event.TenantID).
		Str("direction", event.Direction).
		Str("origin_message_id", event.OriginMessageID).
		Str("correlation_id", event.CorrelationID).
		Msg("publisher: correlation event published")
	return nil
}
