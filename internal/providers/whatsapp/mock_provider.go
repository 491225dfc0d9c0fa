package whatsapp

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
)

// Scenario enumerates supported behaviours for the mock WhatsApp provider.
type Scenario string

const (
	ScenarioSuccess      Scenario = "success"
	ScenarioTransient    Scenario = "transient"
	ScenarioPermanent    Scenario = "permanent"
	ScenarioUnauthorized Scenario = "unauthorized"
	ScenarioTimeout      Scenario = "timeout"
)

// Option customises the mock provider at construction time.
type Option func(*MockProvider)

// WithScenario overrides the default scenario.
func WithScenario(s Scenario) Option {
	return func(p *MockProvider) {
		p.defaultScenario = s
	}
}

// WithRecipientScenario makes sends to one recipient follow s.
func WithRecipientScenario(to string, s Scenario) Option {
	return func(p *MockProvider) {
		p.byRecipient[to] = s
	}
}

// WithLatency sets the artificial latency inserted before responding.
func WithLatency(d time.Duration) Option {
	return func(p *MockProvider) {
		if d < 0 {
			d = 0
		}
		p.latency = d
	}
}

// WithClock swaps out the clock for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(p *MockProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// MockProvider implements a deterministic WhatsApp provider for local runs
// and tests. It records every request it receives.
type MockProvider struct {
	logger          zerolog.Logger
	defaultScenario Scenario
	byRecipient     map[string]Scenario
	latency         time.Duration
	now             func() time.Time

	mu   sync.Mutex
	rnd  *rand.Rand
	sent []SendRequest
}

// NewMockProvider constructs a new mock WhatsApp provider.
func NewMockProvider(logger zerolog.Logger, opts ...Option) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &MockProvider{
		logger:          logger,
		defaultScenario: ScenarioSuccess,
		byRecipient:     map[string]Scenario{},
		latency:         25 * time.Millisecond,
		now:             time.Now,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Send simulates a Graph API send.
func (p *MockProvider) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	p.mu.Lock()
	p.sent = append(p.sent, req)
	scenario, ok := p.byRecipient[req.Message.To]
	if !ok {
		scenario = p.defaultScenario
	}
	p.mu.Unlock()

	const op = "whatsapp mock: send"
	switch scenario {
	case ScenarioSuccess:
		return &SendResult{
			MessageID: p.generateID(),
			WaID:      req.Message.To,
			Code:      http.StatusOK,
			Body:      "mock: message accepted",
			Timestamp: p.now(),
		}, nil
	case ScenarioTransient:
		return nil, errclass.NewHTTPError(op, http.StatusServiceUnavailable, "mock: service unavailable")
	case ScenarioPermanent:
		return nil, errclass.NewHTTPError(op, http.StatusBadRequest, "mock: invalid recipient")
	case ScenarioUnauthorized:
		return nil, errclass.NewHTTPError(op, http.StatusUnauthorized, "mock: access token expired")
	case ScenarioTimeout:
		timer := time.NewTimer(maxTimeout)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, fmt.Errorf("whatsapp mock timeout")
		}
	default:
		return nil, fmt.Errorf("whatsapp mock unknown scenario: %s", scenario)
	}
}

// Sent returns a copy of every request received so far.
func (p *MockProvider) Sent() []SendRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SendRequest(nil), p.sent...)
}

func (p *MockProvider) generateID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("wamid.mock%d", p.rnd.Int63())
}
