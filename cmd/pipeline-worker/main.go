package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shabibmr/waba-xypr-sub001/internal/config"
	"github.com/shabibmr/waba-xypr-sub001/internal/health"
	"github.com/shabibmr/waba-xypr-sub001/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(logger.Options{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.ServiceName,
		Version: cfg.App.ServiceVersion,
	})
	if err != nil {
		fail("logger init", err)
	}
	log := *baseLogger

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}()

	broker, err := newBroker(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create queue broker")
	}
	defer func() {
		if err := broker.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close queue broker")
		}
	}()

	consumers, err := wire(cfg, log, rdb, broker)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire pipeline")
	}

	probes := health.NewServer(cfg.Health.Port, cfg.Health.HandlerTimeout(), log,
		health.BrokerCheck("broker", broker.Ready),
		health.Check{Name: "redis", Probe: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error {
			log.Info().Str("direction", c.direction).Str("queue", c.queue).Msg("consumer started")
			return c.run(gctx, broker)
		})
	}
	g.Go(func() error {
		return probes.Run(gctx)
	})

	log.Info().Strs("directions", cfg.Pipeline.Directions).Str("broker", cfg.Broker.Kind).Msg("pipeline worker started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("pipeline worker terminated with error")
		return
	}
	log.Info().Msg("pipeline worker stopped")
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("pipeline worker init failed")
}
