// Package queue defines the transport-neutral contract between brokers and
// message handlers.
package queue

import (
	"context"
	"strconv"
	"time"
)

// Transport headers understood by the pipeline.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderDeliveryCount = "x-delivery-count"
	HeaderFirstAttempt  = "x-first-attempt-timestamp"
	HeaderContentType   = "content-type"
)

// Disposition is a handler's settlement decision for a delivery.
type Disposition int

const (
	// Ack removes the delivery from the queue.
	Ack Disposition = iota
	// Requeue returns the delivery to the queue for another attempt.
	Requeue
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	default:
		return "disposition(" + strconv.Itoa(int(d)) + ")"
	}
}

// Delivery is one message taken off a queue.
type Delivery struct {
	Queue         string
	Body          []byte
	Headers       map[string]string
	CorrelationID string
	MessageID     string
	Redelivered   bool
	ReceivedAt    time.Time
}

// RetryCount returns how many times the delivery was attempted before,
// preferring the pipeline's own counter over the broker's.
func (d *Delivery) RetryCount() int {
	for _, key := range []string{HeaderRetryCount, HeaderDeliveryCount} {
		if v, ok := d.Headers[key]; ok {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				return n
			}
		}
	}
	return 0
}

// FirstAttempt returns the first-attempt time carried in the headers.
func (d *Delivery) FirstAttempt() (time.Time, bool) {
	v, ok := d.Headers[HeaderFirstAttempt]
	if !ok {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts, true
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

// Handler processes deliveries. It must not panic and always returns a
// disposition; brokers settle the delivery accordingly.
type Handler interface {
	Handle(ctx context.Context, d *Delivery) Disposition
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d *Delivery) Disposition

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, d *Delivery) Disposition {
	return f(ctx, d)
}

// Message is an outgoing record.
type Message struct {
	Body          []byte
	CorrelationID string
	// Key partitions the message on brokers that support it.
	Key     string
	Headers map[string]string
}

// Publisher writes durable messages to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg Message) error
}

// Broker consumes and publishes messages.
type Broker interface {
	Publisher
	// Consume blocks, delivering messages from queue to h until ctx is done.
	Consume(ctx context.Context, queue string, h Handler) error
	// Ready reports whether the broker currently has a live connection.
	Ready() bool
	Close() error
}
