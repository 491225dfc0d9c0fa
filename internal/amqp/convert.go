package amqp

import (
	"fmt"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

func fromDelivery(queueName string, d amqp091.Delivery, now time.Time) *queue.Delivery {
	return &queue.Delivery{
		Queue:         queueName,
		Body:          d.Body,
		Headers:       fromTable(d.Headers),
		CorrelationID: d.CorrelationId,
		MessageID:     d.MessageId,
		Redelivered:   d.Redelivered,
		ReceivedAt:    now,
	}
}

// fromTable flattens AMQP header values into strings.
func fromTable(t amqp091.Table) map[string]string {
	if len(t) == 0 {
		return nil
	}
	out := make(map[string]string, len(t))
	for k, v := range t {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case []byte:
			out[k] = string(val)
		case time.Time:
			out[k] = val.UTC().Format(time.RFC3339Nano)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func toTable(headers map[string]string) amqp091.Table {
	if len(headers) == 0 {
		return nil
	}
	t := make(amqp091.Table, len(headers))
	for k, v := range headers {
		t[k] = v
	}
	return t
}
