package kafka

import (
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/kafka/consumer"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

const (
	headerCorrelationID = "correlation-id"
	headerMessageID     = "message-id"
)

func toDelivery(rec *consumer.Record, now time.Time) *queue.Delivery {
	headers := make(map[string]string, len(rec.Headers))
	for k, v := range rec.Headers {
		headers[k] = string(v)
	}
	return &queue.Delivery{
		Queue:         rec.Topic,
		Body:          rec.Value,
		Headers:       headers,
		CorrelationID: headers[headerCorrelationID],
		MessageID:     headers[headerMessageID],
		Redelivered:   headers[queue.HeaderRetryCount] != "",
		ReceivedAt:    now,
	}
}
