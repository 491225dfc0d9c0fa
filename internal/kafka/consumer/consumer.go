// Package consumer runs a Sarama consumer group whose offsets move only when
// the pipeline settles a record.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const rejoinDelay = time.Second

// Handler is invoked for every record. Records of one partition arrive one at
// a time, in offset order.
type Handler func(ctx context.Context, record *Record) error

// Record is one Kafka message plus the session needed to commit it.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string][]byte

	session   sarama.ConsumerGroupSession
	committed atomic.Bool
}

// Consumer is a consumer group member with auto-commit disabled.
type Consumer struct {
	logger  zerolog.Logger
	group   sarama.ConsumerGroup
	groupID string

	ready      atomic.Bool
	errorsDone chan struct{}
	running    sync.WaitGroup
}

// New joins no group yet; the group is entered by Consume.
func New(brokers []string, groupID string, logger zerolog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka consumer: at least one broker is required")
	}
	if groupID == "" {
		return nil, errors.New("kafka consumer: group id is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	group, err := sarama.NewConsumerGroup(brokers, groupID, defaultConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: create consumer group: %w", err)
	}
	c := &Consumer{
		logger:     logger.With().Str("component", "kafka_consumer").Str("group_id", groupID).Logger(),
		group:      group,
		groupID:    groupID,
		errorsDone: make(chan struct{}),
	}
	go c.logErrors()
	return c, nil
}

// Consume hands records from topics to handler until ctx is done or the group
// is closed, rejoining the group after rebalances and errors.
func (c *Consumer) Consume(ctx context.Context, topics []string, handler Handler) error {
	if len(topics) == 0 {
		return errors.New("kafka consumer: at least one topic is required")
	}
	if handler == nil {
		return errors.New("kafka consumer: handler is required")
	}
	c.running.Add(1)
	defer c.running.Done()

	claims := &claimHandler{consumer: c, handle: handler}
	for ctx.Err() == nil {
		err := c.group.Consume(ctx, topics, claims)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err == nil {
			continue
		}
		c.logger.Error().Err(err).Strs("topics", topics).Msg("kafka consumer: session ended with error, rejoining")
		select {
		case <-ctx.Done():
		case <-time.After(rejoinDelay):
		}
	}
	return ctx.Err()
}

// Commit marks the record's offset as consumed and flushes it. Committing a
// record twice is a no-op.
func (c *Consumer) Commit(_ context.Context, record *Record) error {
	if record == nil || record.session == nil {
		return errors.New("kafka consumer: record has no session")
	}
	if !record.committed.CompareAndSwap(false, true) {
		return nil
	}
	record.session.MarkOffset(record.Topic, record.Partition, record.Offset+1, "")
	record.session.Commit()
	return nil
}

// IsReady reports whether the member currently holds partition claims.
func (c *Consumer) IsReady() bool {
	return c.ready.Load()
}

// Close leaves the group and waits for Consume to return.
func (c *Consumer) Close() error {
	err := c.group.Close()
	c.running.Wait()
	<-c.errorsDone
	return err
}

func (c *Consumer) logErrors() {
	defer close(c.errorsDone)
	for err := range c.group.Errors() {
		c.logger.Error().Err(err).Msg("kafka consumer: group error")
	}
}

type claimHandler struct {
	consumer *Consumer
	handle   Handler
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.ready.Store(true)
	h.consumer.logger.Info().Msg("kafka consumer: partitions assigned")
	return nil
}

func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.consumer.ready.Store(false)
	h.consumer.logger.Info().Msg("kafka consumer: partitions released")
	return nil
}

func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handle(ctx, newRecord(session, msg)); err != nil {
				h.consumer.logger.Error().
					Err(err).
					Str("topic", msg.Topic).
					Int32("partition", msg.Partition).
					Int64("offset", msg.Offset).
					Msg("kafka consumer: record left uncommitted")
			}
		}
	}
}

// newRecord adopts the message buffers; Sarama allocates them per message.
func newRecord(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) *Record {
	rec := &Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		session:   session,
	}
	for _, h := range msg.Headers {
		if h == nil || len(h.Key) == 0 {
			continue
		}
		if rec.Headers == nil {
			rec.Headers = make(map[string][]byte, len(msg.Headers))
		}
		rec.Headers[string(h.Key)] = h.Value
	}
	return rec
}

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "waba-pipeline-consumer"
	cfg.Consumer.Group.Session.Timeout = 30 * time.Second
	cfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Offsets.AutoCommit.Enable = false
	cfg.Consumer.Return.Errors = true
	return cfg
}
