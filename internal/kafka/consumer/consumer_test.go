package consumer

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type markedOffset struct {
	topic     string
	partition int32
	offset    int64
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	marked  []markedOffset
	commits int
}

func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, _ string) {
	s.marked = append(s.marked, markedOffset{topic, partition, offset})
}

func (s *fakeSession) Commit() { s.commits++ }

func TestNewRecordMapsMessage(t *testing.T) {
	msg := &sarama.ConsumerMessage{
		Topic: "outbound-ready", Partition: 1, Offset: 42,
		Key: []byte("tenant-a"), Value: []byte(`{"a":1}`),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("x-retry-count"), Value: []byte("2")},
			{Key: nil, Value: []byte("ignored")},
			nil,
		},
	}
	rec := newRecord(nil, msg)
	if rec.Topic != "outbound-ready" || rec.Partition != 1 || rec.Offset != 42 || string(rec.Key) != "tenant-a" || string(rec.Value) != `{"a":1}` {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(rec.Headers) != 1 || string(rec.Headers["x-retry-count"]) != "2" {
		t.Fatalf("unexpected headers %v", rec.Headers)
	}
	if newRecord(nil, &sarama.ConsumerMessage{}).Headers != nil {
		t.Fatalf("records without headers must carry a nil map")
	}
}

func TestCommitMarksNextOffsetOnce(t *testing.T) {
	session := &fakeSession{}
	rec := newRecord(session, &sarama.ConsumerMessage{Topic: "status-ready", Partition: 3, Offset: 9})
	c := &Consumer{}

	for i := 0; i < 2; i++ {
		if err := c.Commit(context.Background(), rec); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}
	if len(session.marked) != 1 || session.commits != 1 {
		t.Fatalf("expected a single commit, got marks=%v commits=%d", session.marked, session.commits)
	}
	if got := session.marked[0]; got != (markedOffset{"status-ready", 3, 10}) {
		t.Fatalf("expected next offset to be marked, got %+v", got)
	}
	if err := c.Commit(context.Background(), &Record{}); err == nil {
		t.Fatalf("expected error for a record without session")
	}
}

func TestDefaultConfigDisablesAutoCommit(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Consumer.Offsets.AutoCommit.Enable {
		t.Fatalf("offsets must only be committed explicitly")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(nil, "group", zerolog.Nop()); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := New([]string{"localhost:9092"}, "", zerolog.Nop()); err == nil {
		t.Fatalf("expected error without group id")
	}
}
