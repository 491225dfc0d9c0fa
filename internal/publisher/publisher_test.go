package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue"
	"github.com/shabibmr/waba-xypr-sub001/internal/queue/queuetest"
)

func TestCorrelationPublisherPublishesEvent(t *testing.T) {
	sink := &queuetest.Publisher{}
	pub, err := NewCorrelationPublisher(sink, "correlation-events", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCorrelationPublisher: %v", err)
	}

	event := models.CorrelationEvent{
		TenantID:                "tenant-a",
		Direction:               "inbound",
		ExternalConversationID:  "conv-1",
		ExternalCommunicationID: "comm-1",
		OriginMessageID:         "wamid.1",
		Status:                  models.CorrelationStatusDelivered,
		Timestamp:               time.Unix(1_700_000_000, 0).UTC(),
		CorrelationID:           "corr-1",
	}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	msgs := sink.On("correlation-events")
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	if msgs[0].CorrelationID != "corr-1" || msgs[0].Key != "tenant-a" {
		t.Fatalf("unexpected transport properties %+v", msgs[0])
	}
	if ct := msgs[0].Headers[queue.HeaderContentType]; ct != "application/json" {
		t.Fatalf("expected content-type header, got %s", ct)
	}
	var decoded models.CorrelationEvent
	if err := json.Unmarshal(msgs[0].Body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ExternalCommunicationID != "comm-1" || decoded.OriginMessageID != "wamid.1" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestCorrelationPublisherPropagatesError(t *testing.T) {
	boom := errors.New("channel closed")
	pub, _ := NewCorrelationPublisher(&queuetest.Publisher{Err: boom}, "correlation-events", zerolog.Nop())
	if err := pub.Publish(context.Background(), models.CorrelationEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}

func TestCorrelationPublisherNilReceiver(t *testing.T) {
	var pub *CorrelationPublisher
	if err := pub.Publish(context.Background(), models.CorrelationEvent{}); !errors.Is(err, errPublisherNotInitialised) {
		t.Fatalf("expected not initialised error, got %v", err)
	}
}

func TestDeadLetterRecord(t *testing.T) {
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	router, err := NewDeadLetterRouter(&queuetest.Publisher{}, "waba-pipeline", "1.2.3", zerolog.Nop(), WithDeadLetterClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewDeadLetterRouter: %v", err)
	}

	first := now.Add(-time.Hour)
	d := &queue.Delivery{
		Body:    []byte(`{"tenantId":"tenant-a"}`),
		Headers: map[string]string{queue.HeaderRetryCount: "3", queue.HeaderFirstAttempt: first.Format(time.RFC3339Nano)},
	}
	rec := router.Record(d, Failure{
		Direction:  "outbound",
		TenantID:   "tenant-a",
		InternalID: "id-1",
		Err:        errclass.NewHTTPError("send", 400, "invalid recipient"),
	})

	if rec.ErrorDetails.ErrorType != "client_error" || rec.ErrorDetails.RetryCount != 3 {
		t.Fatalf("unexpected error details %+v", rec.ErrorDetails)
	}
	if !rec.ErrorDetails.FirstAttemptTimestamp.Equal(first) || !rec.ErrorDetails.LastAttemptTimestamp.Equal(now) {
		t.Fatalf("unexpected attempt timestamps %+v", rec.ErrorDetails)
	}
	if string(rec.OriginalMessage) != `{"tenantId":"tenant-a"}` {
		t.Fatalf("valid JSON must be embedded verbatim, got %s", rec.OriginalMessage)
	}
	if rec.Metadata.Service != "waba-pipeline" || rec.Metadata.ServiceVersion != "1.2.3" || !rec.Metadata.DLQTimestamp.Equal(now) {
		t.Fatalf("unexpected metadata %+v", rec.Metadata)
	}
}

func TestDeadLetterRecordDefaults(t *testing.T) {
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	router, _ := NewDeadLetterRouter(&queuetest.Publisher{}, "svc", "v", zerolog.Nop(), WithDeadLetterClock(func() time.Time { return now }))

	rec := router.Record(&queue.Delivery{Body: []byte("not json")}, Failure{Err: errclass.WrapValidation(errors.New("unparseable"))})
	if rec.ErrorDetails.RetryCount != 0 || !rec.ErrorDetails.FirstAttemptTimestamp.Equal(now) {
		t.Fatalf("expected defaults, got %+v", rec.ErrorDetails)
	}
	if rec.ErrorDetails.ErrorType != "validation_error" {
		t.Fatalf("expected validation_error, got %s", rec.ErrorDetails.ErrorType)
	}
	if string(rec.OriginalMessage) != `"not json"` {
		t.Fatalf("invalid JSON must be quoted, got %s", rec.OriginalMessage)
	}
}

func TestDeadLetterRouteSwallowsPublishErrors(t *testing.T) {
	sink := &queuetest.Publisher{Err: fmt.Errorf("broker down")}
	router, _ := NewDeadLetterRouter(sink, "svc", "v", zerolog.Nop())

	router.Route(context.Background(), &queue.Delivery{Body: []byte(`{}`)}, Failure{Queue: "outbound-ready.dlq", Err: errors.New("x")})
	if len(sink.All()) != 0 {
		t.Fatalf("nothing should be recorded when publish fails")
	}

	sink.SetErr(nil)
	router.Route(context.Background(), &queue.Delivery{Body: []byte(`{}`), CorrelationID: "corr-2"}, Failure{Queue: "outbound-ready.dlq", TenantID: "t", Err: errors.New("x")})
	msgs := sink.On("outbound-ready.dlq")
	if len(msgs) != 1 || msgs[0].CorrelationID != "corr-2" {
		t.Fatalf("expected one DLQ message with correlation id, got %+v", msgs)
	}
}
