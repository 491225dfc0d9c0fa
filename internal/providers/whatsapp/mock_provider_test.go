package whatsapp

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
)

func TestMockProviderSuccess(t *testing.T) {
	fixed := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	provider := NewMockProvider(zerolog.Nop(), WithClock(func() time.Time { return fixed }), WithLatency(0))

	res, err := provider.Send(context.Background(), textRequest())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.MessageID == "" || res.Timestamp != fixed {
		t.Fatalf("unexpected response: %+v", res)
	}
	if sent := provider.Sent(); len(sent) != 1 || sent[0].Message.Text.Body != "hello" {
		t.Fatalf("expected the request to be recorded, got %+v", sent)
	}
}

func TestMockProviderScenarios(t *testing.T) {
	cases := map[Scenario]errclass.Category{
		ScenarioTransient:    errclass.CategoryTransient,
		ScenarioPermanent:    errclass.CategoryClient,
		ScenarioUnauthorized: errclass.CategoryAuthExpired,
	}
	for scenario, want := range cases {
		provider := NewMockProvider(zerolog.Nop(), WithLatency(0), WithRecipientScenario("919876543210", scenario))
		_, err := provider.Send(context.Background(), textRequest())
		if got := errclass.Classify(err).Category; got != want {
			t.Fatalf("scenario %s: expected %s, got %s (%v)", scenario, want, got, err)
		}
	}
}

func TestMockProviderTimeoutHonoursContext(t *testing.T) {
	provider := NewMockProvider(zerolog.Nop(), WithLatency(0), WithScenario(ScenarioTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := provider.Send(ctx, textRequest())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if c := errclass.Classify(err); !c.Retryable {
		t.Fatalf("timeouts must be retryable, got %+v", c)
	}
}
