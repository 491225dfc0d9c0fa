package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/httpclient"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/publisher"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
)

// ErrSkip is returned by Route.Parse for valid messages that are
// deliberately not delivered. The engine acknowledges them without a DLQ
// record.
var ErrSkip = errors.New("worker: message skipped")

// State names a step of the per-message lifecycle. States only appear in
// logs.
type State string

const (
	StateReceived          State = "Received"
	StateParsed            State = "Parsed"
	StateValidated         State = "Validated"
	StateDedupChecked      State = "DedupChecked"
	StateCredentialsLoaded State = "CredentialsLoaded"
	StateDelivered         State = "Delivered"
	StateCorrelated        State = "Correlated"
	StateAcked             State = "Acked"
	StateRetried           State = "Retried"
	StateDeadLettered      State = "DeadLettered"
)

// Config contains the runtime settings of one direction's engine.
type Config struct {
	Direction   string
	DLQQueue    string
	MsgMaxBytes int
}

// Job is a validated message plus the identifiers the engine needs.
type Job[T any] struct {
	TenantID string
	// DedupID is the id recorded in the dedup ledger once delivery succeeds.
	// When empty the engine falls back to the transport message id; a job
	// with neither bypasses the ledger.
	DedupID       string
	InternalID    string
	CorrelationID string
	Message       *T
}

// Route is the direction-specific part of the pipeline. T is the validated
// envelope and P is whatever Prepare resolves for delivery.
type Route[T, P any] interface {
	// Parse validates a raw body. Failures must be validation-class.
	Parse(raw []byte) (Job[T], error)
	// Prepare loads tenant configuration and builds the delivery plan.
	Prepare(ctx context.Context, job Job[T]) (P, error)
	// Deliver calls the external API and returns the provider message ids.
	Deliver(ctx context.Context, job Job[T], plan P, token string) ([]string, error)
	// Correlate builds the correlation events for a delivered message. It
	// must not fail; lookups that do not resolve leave ids empty.
	Correlate(ctx context.Context, job Job[T], plan P, providerIDs []string) []models.CorrelationEvent
}

// TokenSource resolves and drops cached access tokens per tenant.
type TokenSource interface {
	Token(ctx context.Context, tenantID string) (string, error)
	Invalidate(ctx context.Context, tenantID string)
}

// DedupLedger records delivered messages.
type DedupLedger interface {
	Seen(ctx context.Context, tenantID, externalID string) bool
	Mark(ctx context.Context, tenantID, externalID string) (bool, error)
}

// DeadLetterer routes terminal failures to a DLQ. It never fails.
type DeadLetterer interface {
	Route(ctx context.Context, d *queue.Delivery, f publisher.Failure)
}

// CorrelationSink publishes correlation events.
type CorrelationSink interface {
	Publish(ctx context.Context, event models.CorrelationEvent) error
}

// Dependencies collects the runtime collaborators required by the engine.
type Dependencies[T, P any] struct {
	Route       Route[T, P]
	Tokens      TokenSource
	Dedup       DedupLedger
	DeadLetter  DeadLetterer
	Correlation CorrelationSink
	Logger      zerolog.Logger
}

// Engine drives one direction: validate, dedup, authenticate, deliver,
// correlate, then settle the delivery. It implements queue.Handler.
type Engine[T, P any] struct {
	cfg         Config
	route       Route[T, P]
	tokens      TokenSource
	dedup       DedupLedger
	deadLetter  DeadLetterer
	correlation CorrelationSink
	logger      zerolog.Logger
}

// NewEngine constructs an engine, validating configuration and
// dependencies up front.
func NewEngine[T, P any](cfg Config, deps Dependencies[T, P]) (*Engine[T, P], error) {
	if cfg.Direction == "" {
		return nil, errors.New("worker: direction must be provided")
	}
	if cfg.DLQQueue == "" {
		return nil, errors.New("worker: dlq queue must be provided")
	}
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("worker: msg max bytes cannot be negative")
	}
	if deps.Route == nil {
		return nil, errors.New("worker: route dependency is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("worker: token source dependency is required")
	}
	if deps.Dedup == nil {
		return nil, errors.New("worker: dedup dependency is required")
	}
	if deps.DeadLetter == nil {
		return nil, errors.New("worker: dead letter dependency is required")
	}
	if deps.Correlation == nil {
		return nil, errors.New("worker: correlation dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "worker_engine").Str("direction", cfg.Direction).Logger()

	return &Engine[T, P]{
		cfg:         cfg,
		route:       deps.Route,
		tokens:      deps.Tokens,
		dedup:       deps.Dedup,
		deadLetter:  deps.DeadLetter,
		correlation: deps.Correlation,
		logger:      logger,
	}, nil
}

// Handle processes one delivery and returns how it must be settled. Every
// failure is resolved here; Handle never panics on message content.
func (e *Engine[T, P]) Handle(ctx context.Context, d *queue.Delivery) queue.Disposition {
	start := time.Now()
	log := e.logger.With().
		Str("queue", d.Queue).
		Str("message_id", d.MessageID).
		Int("retry_count", d.RetryCount()).
		Logger()
	log.Debug().Str("state", string(StateReceived)).Int("bytes", len(d.Body)).Msg("worker: message received")

	if e.cfg.MsgMaxBytes > 0 && len(d.Body) > e.cfg.MsgMaxBytes {
		err := fmt.Errorf("payload exceeds maximum size: got %d bytes, limit %d bytes", len(d.Body), e.cfg.MsgMaxBytes)
		return e.reject(ctx, d, log, errclass.WrapValidation(err))
	}
	if !json.Valid(d.Body) {
		return e.reject(ctx, d, log, errclass.WrapValidation(errors.New("malformed JSON body")))
	}
	log.Debug().Str("state", string(StateParsed)).Msg("worker: message parsed")

	job, err := e.route.Parse(d.Body)
	if errors.Is(err, ErrSkip) {
		log.Info().Err(err).Msg("worker: message not forwarded, acknowledging")
		return queue.Ack
	}
	if err != nil {
		return e.reject(ctx, d, log, err)
	}

	if job.DedupID == "" {
		job.DedupID = d.MessageID
	}
	if job.CorrelationID == "" {
		job.CorrelationID = d.CorrelationID
	}
	ctx = httpclient.WithCorrelationID(ctx, job.CorrelationID)
	log = log.With().
		Str("tenant_id", job.TenantID).
		Str("external_id", job.DedupID).
		Str("internal_id", job.InternalID).
		Str("correlation_id", job.CorrelationID).
		Logger()
	log.Debug().Str("state", string(StateValidated)).Msg("worker: message validated")

	ledger := job.DedupID != ""
	switch {
	case !ledger:
		log.Debug().Msg("worker: message carries no id, dedup ledger bypassed")
	case e.dedup.Seen(ctx, job.TenantID, job.DedupID):
		log.Info().Msg("worker: duplicate message, acknowledging without delivery")
		return queue.Ack
	default:
		log.Debug().Str("state", string(StateDedupChecked)).Msg("worker: dedup check passed")
	}

	plan, err := e.route.Prepare(ctx, job)
	if err != nil {
		return e.fail(ctx, d, job, log, err)
	}
	log.Debug().Str("state", string(StateCredentialsLoaded)).Msg("worker: credentials loaded")

	token, err := e.tokens.Token(ctx, job.TenantID)
	if err != nil {
		return e.fail(ctx, d, job, log, err)
	}

	ids, err := e.route.Deliver(ctx, job, plan, token)
	if err != nil {
		return e.fail(ctx, d, job, log, err)
	}
	log.Info().
		Str("state", string(StateDelivered)).
		Strs("provider_message_ids", ids).
		Dur("duration", time.Since(start)).
		Msg("worker: message delivered")

	if ledger {
		if _, err := e.dedup.Mark(ctx, job.TenantID, job.DedupID); err != nil {
			log.Warn().Err(err).Msg("worker: failed to record delivery in dedup ledger")
		}
	}

	for _, event := range e.route.Correlate(ctx, job, plan, ids) {
		if event.CorrelationID == "" {
			event.CorrelationID = job.CorrelationID
		}
		if err := e.correlation.Publish(ctx, event); err != nil {
			return e.fail(ctx, d, job, log, err)
		}
	}
	log.Debug().Str("state", string(StateCorrelated)).Msg("worker: correlation published")

	log.Debug().Str("state", string(StateAcked)).Msg("worker: message acknowledged")
	return queue.Ack
}

// fail settles a delivery after a post-validation failure.
func (e *Engine[T, P]) fail(ctx context.Context, d *queue.Delivery, job Job[T], log zerolog.Logger, err error) queue.Disposition {
	if ctx.Err() != nil {
		log.Warn().Err(err).Str("state", string(StateRetried)).Msg("worker: context cancelled during processing, requeueing")
		return queue.Requeue
	}

	class := errclass.Classify(err)
	log = log.With().Str("error_type", string(class.Category)).Logger()

	switch {
	case class.Category == errclass.CategoryAuthExpired:
		e.tokens.Invalidate(ctx, job.TenantID)
		log.Warn().Err(err).Str("state", string(StateRetried)).Msg("worker: access token rejected, invalidated and requeueing")
		return queue.Requeue
	case class.Retryable:
		log.Warn().Err(err).Str("state", string(StateRetried)).Msg("worker: transient failure, requeueing")
		return queue.Requeue
	}

	e.deadLetter.Route(context.WithoutCancel(ctx), d, publisher.Failure{
		Queue:      e.cfg.DLQQueue,
		Direction:  e.cfg.Direction,
		TenantID:   job.TenantID,
		InternalID: job.InternalID,
		Err:        err,
	})
	log.Error().Err(err).Str("state", string(StateDeadLettered)).Msg("worker: permanent failure, message dead-lettered")
	return queue.Ack
}

// reject dead-letters a delivery that never produced a Job.
func (e *Engine[T, P]) reject(ctx context.Context, d *queue.Delivery, log zerolog.Logger, err error) queue.Disposition {
	ids := peekIdentity(d.Body)
	e.deadLetter.Route(context.WithoutCancel(ctx), d, publisher.Failure{
		Queue:      e.cfg.DLQQueue,
		Direction:  e.cfg.Direction,
		TenantID:   ids.tenantID(),
		InternalID: ids.internalID(),
		Err:        err,
	})
	log.Warn().Err(err).Str("state", string(StateDeadLettered)).Msg("worker: validation failed, message dead-lettered")
	return queue.Ack
}

// identity is the best-effort subset of any envelope used to label DLQ
// records for bodies that failed validation.
type identity struct {
	TenantID   string `json:"tenantId"`
	InternalID string `json:"internalId"`
	Metadata   *struct {
		TenantID   string `json:"tenantId"`
		InternalID string `json:"internalId"`
	} `json:"metadata"`
}

func peekIdentity(body []byte) identity {
	var ids identity
	_ = json.Unmarshal(body, &ids)
	return ids
}

func (i identity) tenantID() string {
	if i.TenantID == "" && i.Metadata != nil {
		return i.Metadata.TenantID
	}
	return i.TenantID
}

func (i identity) internalID() string {
	if i.InternalID == "" && i.Metadata != nil {
		return i.Metadata.InternalID
	}
	return i.InternalID
}
