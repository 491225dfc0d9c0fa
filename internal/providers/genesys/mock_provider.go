package genesys

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

// Scenario enumerates supported behaviours for the mock provider.
type Scenario string

const (
	ScenarioSuccess      Scenario = "success"
	ScenarioTransient    Scenario = "transient"
	ScenarioPermanent    Scenario = "permanent"
	ScenarioUnauthorized Scenario = "unauthorized"
)

// Option customises the mock provider.
type Option func(*MockProvider)

// WithScenario sets the outcome of SendMessage and SendReceipt.
func WithScenario(s Scenario) Option {
	return func(p *MockProvider) {
		p.scenario = s
	}
}

// WithDetailsFailures makes the first n MessageDetails calls fail.
func WithDetailsFailures(n int) Option {
	return func(p *MockProvider) {
		p.detailsFailures = n
	}
}

// MockProvider is a deterministic in-memory Provider that records calls.
type MockProvider struct {
	logger          zerolog.Logger
	scenario        Scenario
	detailsFailures int

	mu           sync.Mutex
	messages     []models.OpenMessage
	receipts     []models.OpenReceipt
	detailsCalls int
	conversation map[string]string
}

// NewMockProvider constructs a mock Genesys provider.
func NewMockProvider(logger zerolog.Logger, opts ...Option) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &MockProvider{logger: logger, scenario: ScenarioSuccess, conversation: map[string]string{}}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *MockProvider) fail(op string) error {
	switch p.scenario {
	case ScenarioSuccess:
		return nil
	case ScenarioTransient:
		return errclass.NewHTTPError(op, http.StatusServiceUnavailable, "mock: service unavailable")
	case ScenarioPermanent:
		return errclass.NewHTTPError(op, http.StatusBadRequest, "mock: invalid message")
	case ScenarioUnauthorized:
		return errclass.NewHTTPError(op, http.StatusUnauthorized, "mock: token expired")
	default:
		return fmt.Errorf("genesys mock unknown scenario: %s", p.scenario)
	}
}

// SendMessage implements Provider.
func (p *MockProvider) SendMessage(ctx context.Context, target Target, msg models.OpenMessage) (*models.OpenMessageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("genesys mock: send message"); err != nil {
		return nil, err
	}
	p.messages = append(p.messages, msg)
	id := uuid.NewString()
	p.conversation[id] = uuid.NewString()
	return &models.OpenMessageResult{ID: id}, nil
}

// SendReceipt implements Provider.
func (p *MockProvider) SendReceipt(ctx context.Context, target Target, receipt models.OpenReceipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("genesys mock: send receipt"); err != nil {
		return err
	}
	p.receipts = append(p.receipts, receipt)
	return nil
}

// MessageDetails implements Provider.
func (p *MockProvider) MessageDetails(ctx context.Context, target Target, messageID string) (*models.MessageDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detailsCalls++
	if p.detailsCalls <= p.detailsFailures {
		return nil, errclass.NewHTTPError("genesys mock: message details", http.StatusNotFound, "mock: not yet indexed")
	}
	conv, ok := p.conversation[messageID]
	if !ok {
		return nil, errors.New("genesys mock: unknown message id")
	}
	return &models.MessageDetails{ID: messageID, ConversationID: conv, CommunicationID: "comm-" + messageID}, nil
}

// Messages returns a copy of the messages accepted so far.
func (p *MockProvider) Messages() []models.OpenMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OpenMessage(nil), p.messages...)
}

// Receipts returns a copy of the receipts accepted so far.
func (p *MockProvider) Receipts() []models.OpenReceipt {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OpenReceipt(nil), p.receipts...)
}

// DetailsCalls reports how many MessageDetails calls were made.
func (p *MockProvider) DetailsCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detailsCalls
}
