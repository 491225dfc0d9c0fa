package queuetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

type pushed struct {
	delivery *queue.Delivery
	reply    chan queue.Disposition
}

// Broker is an in-memory queue.Broker. Publishes are recorded by the embedded
// Publisher; Push hands a delivery to the queue's consumer and waits for its
// disposition.
type Broker struct {
	Publisher

	mu     sync.Mutex
	queues map[string]chan pushed
	closed bool
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{queues: map[string]chan pushed{}}
}

func (b *Broker) queue(name string) chan pushed {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queues[name]
	if !ok {
		ch = make(chan pushed)
		b.queues[name] = ch
	}
	return ch
}

// Consume implements queue.Broker.
func (b *Broker) Consume(ctx context.Context, queueName string, h queue.Handler) error {
	ch := b.queue(queueName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-ch:
			p.reply <- h.Handle(ctx, p.delivery)
		}
	}
}

// Push delivers body to the consumer of queueName.
func (b *Broker) Push(ctx context.Context, queueName string, body []byte, headers map[string]string) (queue.Disposition, error) {
	p := pushed{
		delivery: &queue.Delivery{Queue: queueName, Body: body, Headers: headers, ReceivedAt: time.Now()},
		reply:    make(chan queue.Disposition, 1),
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case b.queue(queueName) <- p:
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case d := <-p.reply:
		return d, nil
	}
}

// Ready implements queue.Broker.
func (b *Broker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Close implements queue.Broker.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("queuetest: broker already closed")
	}
	b.closed = true
	return nil
}
