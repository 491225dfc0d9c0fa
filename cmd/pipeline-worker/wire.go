package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/amqp"
	"github.com/shabibmr/waba-xypr-sub001/internal/config"
	"github.com/shabibmr/waba-xypr-sub001/internal/dedup"
	"github.com/shabibmr/waba-xypr-sub001/internal/httpclient"
	"github.com/shabibmr/waba-xypr-sub001/internal/kafka"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/providers/factory"
	"github.com/shabibmr/waba-xypr-sub001/internal/providers/genesys"
	"github.com/shabibmr/waba-xypr-sub001/internal/publisher"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
	"github.com/shabibmr/waba-xypr-sub001/internal/state"
	"github.com/shabibmr/waba-xypr-sub001/internal/tenant"
	"github.com/shabibmr/waba-xypr-sub001/internal/tokens"
	"github.com/shabibmr/waba-xypr-sub001/internal/transformer"
	"github.com/shabibmr/waba-xypr-sub001/internal/worker"
)

const (
	minCallTimeout = 5 * time.Second
	maxCallTimeout = 15 * time.Second
)

// consumer binds one direction's engine to its intake queue.
type consumer struct {
	direction string
	queue     string
	handler   queue.Handler
}

func (c consumer) run(ctx context.Context, broker queue.Broker) error {
	if err := broker.Consume(ctx, c.queue, c.handler); err != nil {
		return fmt.Errorf("%s consumer: %w", c.direction, err)
	}
	return nil
}

func newBroker(cfg *config.Config, log zerolog.Logger) (queue.Broker, error) {
	if cfg.Broker.Kind == config.BrokerKafka {
		b, err := kafka.NewWithProducer(cfg.Broker.KafkaBrokers, cfg.Broker.ConsumerGroup, log, kafka.WithInFlight(cfg.Broker.Prefetch))
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	b, err := amqp.New(cfg.Broker.AMQPURL, log, amqp.WithPrefetch(cfg.Broker.Prefetch))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// shared holds the collaborators every direction uses.
type shared struct {
	cfg         *config.Config
	log         zerolog.Logger
	dedup       *dedup.Store
	deadLetter  *publisher.DeadLetterRouter
	correlation *publisher.CorrelationPublisher
}

func wire(cfg *config.Config, log zerolog.Logger, rdb *redis.Client, broker queue.Broker) ([]consumer, error) {
	callTimeout := httpclient.ClampTimeout(cfg.Pipeline.HTTPTimeout(), minCallTimeout, maxCallTimeout)
	collabTimeout := time.Duration(cfg.Collaborator.TimeoutMs) * time.Millisecond

	store, err := dedup.NewStore(rdb, dedup.WithTTL(cfg.Redis.DedupTTL()), dedup.WithLogger(log))
	if err != nil {
		return nil, err
	}
	deadLetter, err := publisher.NewDeadLetterRouter(broker, cfg.App.ServiceName, cfg.App.ServiceVersion, log.With().Str("component", "dlq-publisher").Logger())
	if err != nil {
		return nil, err
	}
	correlation, err := publisher.NewCorrelationPublisher(broker, cfg.Queues.Correlation, log.With().Str("component", "correlation-publisher").Logger())
	if err != nil {
		return nil, err
	}
	sh := shared{cfg: cfg, log: log, dedup: store, deadLetter: deadLetter, correlation: correlation}

	tenants, err := tenant.NewClient(cfg.Collaborator.TenantServiceURL, collabTimeout)
	if err != nil {
		return nil, err
	}
	conversations, err := state.NewClient(cfg.Collaborator.StateManagerURL, collabTimeout)
	if err != nil {
		return nil, err
	}

	genesysTokens, err := tokens.NewCache(rdb,
		&tokens.GenesysFetcher{
			Credentials:       tenants,
			LoginBaseTemplate: cfg.Genesys.LoginBaseTemplate,
			HTTPClient:        &http.Client{Timeout: callTimeout},
		},
		tokens.WithPrefix(cfg.Redis.TokenKeyPrefix),
		tokens.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	whatsappTokens, err := tokens.NewCache(rdb,
		&tokens.WhatsAppFetcher{
			Credentials:     tenants,
			DefaultLifetime: time.Duration(cfg.WhatsApp.TokenLifetimeSecond) * time.Second,
		},
		tokens.WithPrefix("wa"+cfg.Redis.TokenKeyPrefix),
		tokens.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}

	waProvider, err := factory.WhatsApp(cfg.WhatsApp, callTimeout, log.With().Str("backend", cfg.WhatsApp.Provider).Logger())
	if err != nil {
		return nil, err
	}
	genesysProvider, err := factory.Genesys(cfg.Genesys, callTimeout, log.With().Str("backend", cfg.Genesys.Provider).Logger())
	if err != nil {
		return nil, err
	}

	tf := transformer.New(transformer.Options{
		UnsupportedMIME: transformer.UnsupportedMIMEPolicy(cfg.Pipeline.UnsupportedMIMEPolicy),
		AudioText:       transformer.AudioTextPolicy(cfg.Pipeline.AudioTextPolicy),
		CaptionMaxChars: cfg.Pipeline.CaptionMaxChars,
	}, log)

	var consumers []consumer
	add := func(c consumer, err error) error {
		if err != nil {
			return err
		}
		consumers = append(consumers, c)
		return nil
	}

	for _, direction := range config.AllDirections {
		if !cfg.Pipeline.Enabled(direction) {
			continue
		}
		switch direction {
		case config.DirectionOutbound:
			err = add(bind[models.OutboundMessage, worker.WhatsAppPlan](sh, direction, whatsappTokens, &worker.OutboundRoute{
				Credentials:    tenants,
				Transformer:    tf,
				Provider:       waProvider,
				DefaultTimeout: callTimeout,
			}))
		case config.DirectionWidget:
			err = add(bind[models.WidgetMessage, worker.WhatsAppPlan](sh, direction, whatsappTokens, &worker.WidgetRoute{
				Credentials:    tenants,
				Conversations:  conversations,
				Transformer:    tf,
				Provider:       waProvider,
				DefaultTimeout: callTimeout,
			}))
		case config.DirectionInbound:
			err = add(bind[models.InboundMessage, *worker.InboundPlan](sh, direction, genesysTokens, &worker.InboundRoute{
				Credentials:         tenants,
				Provider:            genesysProvider,
				DefaultTimeout:      callTimeout,
				CorrelationAttempts: cfg.Pipeline.CorrelationAttempts,
				CorrelationDelay:    cfg.Pipeline.CorrelationDelay(),
				Logger:              log.With().Str("component", "inbound-route").Logger(),
			}))
		case config.DirectionStatus:
			err = add(bind[models.StatusMessage, genesys.Target](sh, direction, genesysTokens, &worker.StatusRoute{
				Credentials:    tenants,
				Provider:       genesysProvider,
				DefaultTimeout: callTimeout,
			}))
		}
		if err != nil {
			return nil, fmt.Errorf("wire %s: %w", direction, err)
		}
	}
	return consumers, nil
}

func bind[T, P any](sh shared, direction string, tokenSource worker.TokenSource, route worker.Route[T, P]) (consumer, error) {
	pair, ok := sh.cfg.Queues.ForDirection(direction)
	if !ok {
		return consumer{}, fmt.Errorf("no queues configured for direction %q", direction)
	}
	eng, err := worker.NewEngine(worker.Config{
		Direction:   direction,
		DLQQueue:    pair.DLQ,
		MsgMaxBytes: sh.cfg.Broker.MsgMaxBytes,
	}, worker.Dependencies[T, P]{
		Route:       route,
		Tokens:      tokenSource,
		Dedup:       sh.dedup,
		DeadLetter:  sh.deadLetter,
		Correlation: sh.correlation,
		Logger:      sh.log,
	})
	if err != nil {
		return consumer{}, err
	}
	return consumer{direction: direction, queue: pair.Intake, handler: eng}, nil
}
