// Package amqp implements queue.Broker on RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

const maxReconnectAttempt = 4

// Option customises the broker.
type Option func(*Broker)

// WithPrefetch sets the per-consumer unacknowledged message limit.
func WithPrefetch(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.prefetch = n
		}
	}
}

// WithDialer overrides how connections are opened.
func WithDialer(dial func(url string) (*amqp091.Connection, error)) Option {
	return func(b *Broker) {
		if dial != nil {
			b.dial = dial
		}
	}
}

// WithClock overrides the clock used to stamp deliveries.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// Broker consumes with manual acknowledgement and bounded prefetch, and
// publishes persistent messages with publisher confirms. Connections are
// re-established with exponential backoff.
type Broker struct {
	url      string
	prefetch int
	logger   zerolog.Logger
	dial     func(url string) (*amqp091.Connection, error)
	now      func() time.Time

	mu       sync.Mutex
	conn     *amqp091.Connection
	pubCh    *amqp091.Channel
	declared map[string]bool

	ready  atomic.Bool
	closed atomic.Bool
}

// New constructs a broker. No connection is opened until first use.
func New(url string, logger zerolog.Logger, opts ...Option) (*Broker, error) {
	if url == "" {
		return nil, errors.New("amqp broker: url is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	b := &Broker{
		url:      url,
		prefetch: 10,
		logger:   logger.With().Str("component", "amqp").Logger(),
		dial:     amqp091.Dial,
		now:      time.Now,
		declared: map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Ready reports whether the shared connection is open.
func (b *Broker) Ready() bool {
	return b.ready.Load()
}

// confirmation is the pending broker confirm of one publish.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// Publish writes a persistent JSON message to queue, declaring it on first
// use, and waits for the broker's confirm. Only the send holds the broker
// lock; confirms are awaited concurrently.
func (b *Broker) Publish(ctx context.Context, queueName string, msg queue.Message) error {
	confirm, err := b.send(ctx, queueName, msg)
	if err != nil {
		return err
	}
	return awaitConfirm(ctx, queueName, confirm)
}

func (b *Broker) send(ctx context.Context, queueName string, msg queue.Message) (confirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.publishChannelLocked()
	if err != nil {
		return nil, errclass.WrapTransient(fmt.Errorf("amqp broker: publish channel: %w", err))
	}
	if !b.declared[queueName] {
		if err := declare(ch, queueName); err != nil {
			b.resetPublisherLocked()
			return nil, errclass.WrapTransient(err)
		}
		b.declared[queueName] = true
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queueName, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		CorrelationId: msg.CorrelationID,
		Headers:       toTable(msg.Headers),
		Timestamp:     b.now().UTC(),
		Body:          msg.Body,
	})
	if err != nil {
		b.resetPublisherLocked()
		return nil, errclass.WrapTransient(fmt.Errorf("amqp broker: publish to %s: %w", queueName, err))
	}
	return confirm, nil
}

func awaitConfirm(ctx context.Context, queueName string, confirm confirmation) error {
	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return errclass.WrapTransient(fmt.Errorf("amqp broker: confirm from %s: %w", queueName, err))
	}
	if !ok {
		return errclass.WrapTransient(fmt.Errorf("amqp broker: %s nacked publish", queueName))
	}
	return nil
}

// Consume delivers messages from queueName to h until ctx is cancelled,
// reconnecting after connection or channel failures.
func (b *Broker) Consume(ctx context.Context, queueName string, h queue.Handler) error {
	if h == nil {
		return errors.New("amqp broker: handler is required")
	}
	attempt := 0
	for {
		started, err := b.consumeOnce(ctx, queueName, h)
		if ctx.Err() != nil || b.closed.Load() {
			return nil
		}
		if started {
			attempt = 0
		}
		delay := errclass.Backoff(attempt)
		b.logger.Warn().Err(err).Str("queue", queueName).Dur("retry_in", delay).Msg("amqp broker: consumer stopped, reconnecting")
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if attempt < maxReconnectAttempt {
			attempt++
		}
	}
}

func (b *Broker) consumeOnce(ctx context.Context, queueName string, h queue.Handler) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	ch, err := conn.Channel()
	if err != nil {
		b.dropConnection(conn)
		return false, fmt.Errorf("amqp broker: open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		return false, fmt.Errorf("amqp broker: qos: %w", err)
	}
	if err := declare(ch, queueName); err != nil {
		return false, err
	}
	deliveries, err := ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("amqp broker: consume %s: %w", queueName, err)
	}
	closed := ch.NotifyClose(make(chan *amqp091.Error, 1))

	b.logger.Info().Str("queue", queueName).Int("prefetch", b.prefetch).Msg("amqp broker: consuming")

	sem := semaphore.NewWeighted(int64(b.prefetch))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return true, errors.New("amqp broker: channel closed")
			}
			return true, amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return true, errors.New("amqp broker: delivery channel closed")
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				_ = d.Nack(false, true)
				return true, err
			}
			wg.Add(1)
			go func(d amqp091.Delivery) {
				defer wg.Done()
				defer sem.Release(1)
				b.handle(ctx, queueName, d, h)
			}(d)
		}
	}
}

func (b *Broker) handle(ctx context.Context, queueName string, d amqp091.Delivery, h queue.Handler) {
	disposition := h.Handle(ctx, fromDelivery(queueName, d, b.now()))
	if err := settle(d, disposition); err != nil {
		b.logger.Error().Err(err).Str("queue", queueName).Uint64("delivery_tag", d.DeliveryTag).Msg("amqp broker: settle failed")
	}
}

// settle acknowledges or requeues d.
func settle(d amqp091.Delivery, disposition queue.Disposition) error {
	if disposition == queue.Requeue {
		return d.Nack(false, true)
	}
	return d.Ack(false)
}

func (b *Broker) connection() (*amqp091.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectionLocked()
}

func (b *Broker) connectionLocked() (*amqp091.Connection, error) {
	if b.closed.Load() {
		return nil, errors.New("amqp broker: closed")
	}
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}
	conn, err := b.dial(b.url)
	if err != nil {
		b.ready.Store(false)
		return nil, fmt.Errorf("amqp broker: dial: %w", err)
	}
	b.conn = conn
	b.pubCh = nil
	b.declared = map[string]bool{}
	b.ready.Store(true)

	notify := conn.NotifyClose(make(chan *amqp091.Error, 1))
	go func() {
		if err := <-notify; err != nil {
			b.logger.Warn().Err(err).Msg("amqp broker: connection closed")
		}
		b.ready.Store(false)
	}()
	b.logger.Info().Msg("amqp broker: connected")
	return conn, nil
}

func (b *Broker) publishChannelLocked() (*amqp091.Channel, error) {
	conn, err := b.connectionLocked()
	if err != nil {
		return nil, err
	}
	if b.pubCh != nil && !b.pubCh.IsClosed() {
		return b.pubCh, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	b.pubCh = ch
	b.declared = map[string]bool{}
	return ch, nil
}

func (b *Broker) resetPublisherLocked() {
	if b.pubCh != nil {
		_ = b.pubCh.Close()
	}
	b.pubCh = nil
}

func (b *Broker) dropConnection(conn *amqp091.Connection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		_ = conn.Close()
		b.conn = nil
		b.pubCh = nil
		b.ready.Store(false)
	}
}

// Close closes the connection. Running consumers return.
func (b *Broker) Close() error {
	b.closed.Store(true)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready.Store(false)
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	b.pubCh = nil
	if errors.Is(err, amqp091.ErrClosed) {
		return nil
	}
	return err
}

func declare(ch *amqp091.Channel, queueName string) error {
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp broker: declare %s: %w", queueName, err)
	}
	return nil
}
