// Package queuetest provides in-memory queue fakes for tests.
package queuetest

import (
	"context"
	"sync"

	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

// Published is one recorded publish.
type Published struct {
	Queue   string
	Message queue.Message
}

// Publisher records publishes. When Err is set every publish fails with it;
// a done context fails the publish like a broker round trip would.
type Publisher struct {
	mu  sync.Mutex
	Err error
	out []Published
}

// Publish implements queue.Publisher.
func (p *Publisher) Publish(ctx context.Context, queueName string, msg queue.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.out = append(p.out, Published{Queue: queueName, Message: msg})
	return nil
}

// SetErr changes the failure returned by subsequent publishes.
func (p *Publisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

// On returns the messages published to queueName.
func (p *Publisher) On(queueName string) []queue.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []queue.Message
	for _, rec := range p.out {
		if rec.Queue == queueName {
			out = append(out, rec.Message)
		}
	}
	return out
}

// All returns every recorded publish.
func (p *Publisher) All() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.out...)
}
