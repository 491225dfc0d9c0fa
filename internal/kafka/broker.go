// Package kafka implements queue.Broker on Kafka. Acknowledging commits the
// record's offset; requeueing republishes the record to its topic with an
// incremented retry counter and then commits.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/kafka/consumer"
	"github.com/shabibmr/waba-xypr-sub001/internal/kafka/producer"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

const defaultMaxRequeueDelay = 30 * time.Second

// SyncProducer is the producer behaviour the broker relies on.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
	IsReady() bool
	Close() error
}

// GroupConsumer is the consumer-group behaviour the broker relies on.
type GroupConsumer interface {
	Consume(ctx context.Context, topics []string, handler consumer.Handler) error
	Commit(ctx context.Context, record *consumer.Record) error
	IsReady() bool
	Close() error
}

type committer interface {
	Commit(ctx context.Context, record *consumer.Record) error
}

// Option customises the broker.
type Option func(*Broker)

// WithInFlight bounds how many records are handled concurrently across all
// partitions.
func WithInFlight(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithMaxRequeueDelay caps the delay applied before a record is republished.
func WithMaxRequeueDelay(d time.Duration) Option {
	return func(b *Broker) {
		if d >= 0 {
			b.maxRequeueDelay = d
		}
	}
}

// WithConsumerFactory overrides how per-topic consumer groups are created.
func WithConsumerFactory(fn func(groupID string) (GroupConsumer, error)) Option {
	return func(b *Broker) {
		if fn != nil {
			b.newConsumer = fn
		}
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// Broker implements queue.Broker over a shared producer and one consumer
// group per consumed topic.
type Broker struct {
	logger          zerolog.Logger
	groupPrefix     string
	producer        SyncProducer
	newConsumer     func(groupID string) (GroupConsumer, error)
	sem             *semaphore.Weighted
	maxRequeueDelay time.Duration
	now             func() time.Time

	mu        sync.Mutex
	consumers []GroupConsumer
}

// New constructs a broker. The producer is shared by every publish and
// requeue.
func New(brokers []string, groupPrefix string, prod SyncProducer, logger zerolog.Logger, opts ...Option) (*Broker, error) {
	if prod == nil {
		return nil, errors.New("kafka broker: producer is required")
	}
	if groupPrefix == "" {
		return nil, errors.New("kafka broker: consumer group is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "kafka").Logger()

	b := &Broker{
		logger:          logger,
		groupPrefix:     groupPrefix,
		producer:        prod,
		sem:             semaphore.NewWeighted(10),
		maxRequeueDelay: defaultMaxRequeueDelay,
		now:             time.Now,
	}
	b.newConsumer = func(groupID string) (GroupConsumer, error) {
		return consumer.New(brokers, groupID, logger)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// NewWithProducer dials a Sarama producer and wraps it in a broker.
func NewWithProducer(brokers []string, groupPrefix string, logger zerolog.Logger, opts ...Option) (*Broker, error) {
	prod, err := producer.New(brokers, logger)
	if err != nil {
		return nil, err
	}
	b, err := New(brokers, groupPrefix, prod, logger, opts...)
	if err != nil {
		_ = prod.Close()
		return nil, err
	}
	return b, nil
}

// Publish writes msg to topic, keyed by msg.Key. The correlation id travels as
// a record header.
func (b *Broker) Publish(_ context.Context, topic string, msg queue.Message) error {
	headers := make(map[string][]byte, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		headers[k] = []byte(v)
	}
	if msg.CorrelationID != "" {
		headers[headerCorrelationID] = []byte(msg.CorrelationID)
	}
	var key []byte
	if msg.Key != "" {
		key = []byte(msg.Key)
	}
	if err := b.producer.PublishSync(topic, key, headers, msg.Body); err != nil {
		return errclass.WrapTransient(err)
	}
	return nil
}

// Consume joins the consumer group for topic and blocks until ctx is done.
func (b *Broker) Consume(ctx context.Context, topic string, h queue.Handler) error {
	if h == nil {
		return errors.New("kafka broker: handler is required")
	}
	groupID := b.groupPrefix + "." + topic
	c, err := b.newConsumer(groupID)
	if err != nil {
		return fmt.Errorf("kafka broker: consumer for %s: %w", topic, err)
	}
	b.mu.Lock()
	b.consumers = append(b.consumers, c)
	b.mu.Unlock()

	b.logger.Info().Str("topic", topic).Str("group_id", groupID).Msg("kafka broker: consuming")
	err = c.Consume(ctx, []string{topic}, func(ctx context.Context, rec *consumer.Record) error {
		return b.process(ctx, c, rec, h)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Broker) process(ctx context.Context, c committer, rec *consumer.Record, h queue.Handler) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.sem.Release(1)

	d := toDelivery(rec, b.now())
	if h.Handle(ctx, d) == queue.Requeue {
		if err := b.requeue(ctx, rec, d); err != nil {
			return err
		}
	}
	return c.Commit(ctx, rec)
}

// requeue waits out the retry backoff and republishes the record until the
// publish succeeds or ctx is done.
func (b *Broker) requeue(ctx context.Context, rec *consumer.Record, d *queue.Delivery) error {
	retry := d.RetryCount()
	headers := make(map[string][]byte, len(rec.Headers)+2)
	for k, v := range rec.Headers {
		headers[k] = v
	}
	headers[queue.HeaderRetryCount] = []byte(strconv.Itoa(retry + 1))
	if _, ok := headers[queue.HeaderFirstAttempt]; !ok {
		headers[queue.HeaderFirstAttempt] = []byte(d.ReceivedAt.UTC().Format(time.RFC3339Nano))
	}

	for attempt := retry; ; attempt++ {
		if !sleep(ctx, b.requeueDelay(attempt)) {
			return ctx.Err()
		}
		err := b.producer.PublishSync(rec.Topic, rec.Key, headers, rec.Value)
		if err == nil {
			b.logger.Debug().Str("topic", rec.Topic).Int("retry_count", retry+1).Msg("kafka broker: record requeued")
			return nil
		}
		b.logger.Error().Err(err).Str("topic", rec.Topic).Int64("offset", rec.Offset).Msg("kafka broker: requeue publish failed")
	}
}

func (b *Broker) requeueDelay(attempt int) time.Duration {
	if b.maxRequeueDelay == 0 {
		return 0
	}
	d := errclass.Backoff(attempt)
	if d > b.maxRequeueDelay {
		return b.maxRequeueDelay
	}
	return d
}

// Ready reports whether the producer and every consumer group are live.
func (b *Broker) Ready() bool {
	if !b.producer.IsReady() {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.consumers {
		if !c.IsReady() {
			return false
		}
	}
	return true
}

// Close shuts down consumers and the producer.
func (b *Broker) Close() error {
	b.mu.Lock()
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()

	var errs []error
	for _, c := range consumers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.producer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
