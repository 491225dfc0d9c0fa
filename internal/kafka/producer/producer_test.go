package producer

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

func TestToRecordHeaders(t *testing.T) {
	if toRecordHeaders(nil) != nil {
		t.Fatalf("expected nil for empty headers")
	}
	src := map[string][]byte{"x-retry-count": []byte("1")}
	out := toRecordHeaders(src)
	if len(out) != 1 || string(out[0].Key) != "x-retry-count" || string(out[0].Value) != "1" {
		t.Fatalf("unexpected headers %+v", out)
	}
	src["x-retry-count"][0] = '9'
	if string(out[0].Value) != "1" {
		t.Fatalf("header values must be copied")
	}
}

func TestDefaultConfigIsDurable(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Producer.RequiredAcks != sarama.WaitForAll || !cfg.Producer.Idempotent || !cfg.Producer.Return.Successes {
		t.Fatalf("producer must wait for all replicas idempotently")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestNewRequiresBrokers(t *testing.T) {
	if _, err := New(nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
