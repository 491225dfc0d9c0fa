// Package producer publishes pipeline records to Kafka and waits for every
// in-sync replica to acknowledge them.
package producer

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const metadataRefresh = 30 * time.Second

// Producer is an idempotent sync producer. It reports ready while metadata
// refreshes and sends succeed.
type Producer struct {
	logger zerolog.Logger
	client sarama.Client
	sync   sarama.SyncProducer

	ready atomic.Bool
	stop  chan struct{}
	done  sync.WaitGroup
}

// New connects to brokers and starts the metadata watcher.
func New(brokers []string, logger zerolog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	client, err := sarama.NewClient(brokers, defaultConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create client: %w", err)
	}
	sp, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kafka producer: create sync producer: %w", err)
	}

	p := &Producer{
		logger: logger.With().Str("component", "kafka_producer").Logger(),
		client: client,
		sync:   sp,
		stop:   make(chan struct{}),
	}
	p.refresh()
	p.done.Add(1)
	go p.watch()
	return p, nil
}

// PublishSync writes one record and blocks until it is acknowledged.
func (p *Producer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	if topic == "" {
		return errors.New("kafka producer: topic is required")
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: toRecordHeaders(headers),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}
	_, _, err := p.sync.SendMessage(msg)
	p.ready.Store(err == nil)
	if err != nil {
		return fmt.Errorf("kafka producer: send to %s: %w", topic, err)
	}
	return nil
}

// IsReady reports the outcome of the latest refresh or send.
func (p *Producer) IsReady() bool {
	return p.ready.Load()
}

// Close stops the watcher and releases the producer and client.
func (p *Producer) Close() error {
	close(p.stop)
	p.done.Wait()

	err := p.sync.Close()
	if cerr := p.client.Close(); cerr != nil && !errors.Is(cerr, sarama.ErrClosedClient) {
		err = errors.Join(err, cerr)
	}
	return err
}

func (p *Producer) watch() {
	defer p.done.Done()
	ticker := time.NewTicker(metadataRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.refresh()
		}
	}
}

func (p *Producer) refresh() {
	err := p.client.RefreshMetadata()
	if err != nil {
		p.logger.Error().Err(err).Msg("kafka producer: metadata refresh failed")
	}
	p.ready.Store(err == nil)
}

// toRecordHeaders copies values so callers may reuse their buffers.
func toRecordHeaders(headers map[string][]byte) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	out := make([]sarama.RecordHeader, 0, len(headers))
	for k, v := range headers {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: append([]byte(nil), v...)})
	}
	return out
}

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = "waba-pipeline-producer"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 6
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Metadata.RefreshFrequency = metadataRefresh
	return cfg
}
