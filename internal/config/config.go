package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shabibmr/waba-xypr-sub001/internal/transformer"
)

// Broker kinds supported by the pipeline.
const (
	BrokerAMQP  = "amqp"
	BrokerKafka = "kafka"
)

// Direction names used to select which consumers a process runs.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
	DirectionStatus   = "status"
	DirectionWidget   = "widget"
)

// AllDirections lists every consumer the pipeline knows about.
var AllDirections = []string{DirectionOutbound, DirectionInbound, DirectionStatus, DirectionWidget}

// Config captures all runtime configuration for the delivery pipeline.
type Config struct {
	App          AppConfig
	Broker       BrokerConfig
	Queues       QueueConfig
	Redis        RedisConfig
	Collaborator CollaboratorConfig
	Genesys      GenesysConfig
	WhatsApp     WhatsAppConfig
	Pipeline     PipelineConfig
	Health       HealthConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env            string
	LogLevel       string
	ServiceName    string
	ServiceVersion string
}

// BrokerConfig selects and tunes the queue transport.
type BrokerConfig struct {
	Kind          string
	AMQPURL       string
	KafkaBrokers  []string
	ConsumerGroup string
	Prefetch      int
	MsgMaxBytes   int
}

// QueuePair groups the intake queue of a direction with its dead-letter queue.
type QueuePair struct {
	Intake string
	DLQ    string
}

// QueueConfig names every queue the pipeline consumes or publishes to.
type QueueConfig struct {
	Outbound    QueuePair
	Inbound     QueuePair
	Status      QueuePair
	Widget      QueuePair
	Correlation string
}

// ForDirection returns the queue pair for a direction name.
func (q QueueConfig) ForDirection(direction string) (QueuePair, bool) {
	switch direction {
	case DirectionOutbound:
		return q.Outbound, true
	case DirectionInbound:
		return q.Inbound, true
	case DirectionStatus:
		return q.Status, true
	case DirectionWidget:
		return q.Widget, true
	default:
		return QueuePair{}, false
	}
}

// RedisConfig holds the connection for the dedup ledger and token cache.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	DedupTTLHours  int
	TokenKeyPrefix string
}

// CollaboratorConfig points at the tenant and state services.
type CollaboratorConfig struct {
	TenantServiceURL string
	StateManagerURL  string
	TimeoutMs        int
}

// GenesysConfig describes the contact-center API. Templates contain a
// single %s that is replaced with the tenant region.
type GenesysConfig struct {
	Provider          string
	APIBaseTemplate   string
	LoginBaseTemplate string
}

// WhatsAppConfig describes the Graph API used for WhatsApp delivery.
type WhatsAppConfig struct {
	Provider            string
	GraphBaseURL        string
	APIVersion          string
	TokenLifetimeSecond int
}

// PipelineConfig tunes the delivery orchestrator.
type PipelineConfig struct {
	Directions            []string
	UnsupportedMIMEPolicy string
	AudioTextPolicy       string
	CaptionMaxChars       int
	HTTPTimeoutMs         int
	CorrelationAttempts   int
	CorrelationDelayMs    int
}

// HealthConfig controls the liveness/readiness HTTP server.
type HealthConfig struct {
	Port             int
	HandlerTimeoutMs int
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)
	cfg.App.ServiceName = ldr.getString("SERVICE_NAME", "waba-pipeline", false)
	cfg.App.ServiceVersion = ldr.getString("SERVICE_VERSION", "dev", false)

	cfg.Broker.Kind = strings.ToLower(ldr.getString("BROKER_KIND", BrokerAMQP, false))
	switch cfg.Broker.Kind {
	case BrokerAMQP:
		cfg.Broker.AMQPURL = ldr.getString("AMQP_URL", "", true)
	case BrokerKafka:
		cfg.Broker.KafkaBrokers = ldr.getStringSlice("KAFKA_BROKERS", true)
	default:
		ldr.addError(fmt.Sprintf("BROKER_KIND must be %q or %q", BrokerAMQP, BrokerKafka))
	}
	cfg.Broker.ConsumerGroup = ldr.getString("CONSUMER_GROUP", "waba-pipeline", false)
	cfg.Broker.Prefetch = ldr.getInt("QUEUE_PREFETCH", 10, false)
	cfg.Broker.MsgMaxBytes = ldr.getInt("MSG_MAX_BYTES", 256*1024, false)
	if cfg.Broker.Prefetch < 1 {
		ldr.addError("QUEUE_PREFETCH must be >= 1")
	}

	cfg.Queues.Outbound = QueuePair{
		Intake: ldr.getString("QUEUE_OUTBOUND_READY", "outbound-ready", false),
		DLQ:    ldr.getString("QUEUE_OUTBOUND_DLQ", "outbound-ready.dlq", false),
	}
	cfg.Queues.Inbound = QueuePair{
		Intake: ldr.getString("QUEUE_INBOUND_READY", "inbound-ready", false),
		DLQ:    ldr.getString("QUEUE_INBOUND_DLQ", "inbound-ready.dlq", false),
	}
	cfg.Queues.Status = QueuePair{
		Intake: ldr.getString("QUEUE_STATUS_READY", "status-ready", false),
		DLQ:    ldr.getString("QUEUE_STATUS_DLQ", "status-ready.dlq", false),
	}
	cfg.Queues.Widget = QueuePair{
		Intake: ldr.getString("QUEUE_WIDGET_READY", "widget-ready", false),
		DLQ:    ldr.getString("QUEUE_WIDGET_DLQ", "widget-ready.dlq", false),
	}
	cfg.Queues.Correlation = ldr.getString("QUEUE_CORRELATION_EVENTS", "correlation-events", false)

	cfg.Redis.Addr = ldr.getString("REDIS_ADDR", "localhost:6379", false)
	cfg.Redis.Password = ldr.getString("REDIS_PASSWORD", "", false)
	cfg.Redis.DB = ldr.getInt("REDIS_DB", 0, false)
	cfg.Redis.DedupTTLHours = ldr.getInt("DEDUP_TTL_HOURS", 24, false)
	cfg.Redis.TokenKeyPrefix = ldr.getString("TOKEN_KEY_PREFIX", "token", false)

	cfg.Collaborator.TenantServiceURL = ldr.getString("TENANT_SERVICE_URL", "", true)
	cfg.Collaborator.StateManagerURL = ldr.getString("STATE_MANAGER_URL", "", true)
	cfg.Collaborator.TimeoutMs = ldr.getInt("COLLABORATOR_TIMEOUT_MS", 5000, false)

	cfg.Genesys.Provider = strings.ToLower(ldr.getString("GENESYS_PROVIDER", "genesys", false))
	cfg.Genesys.APIBaseTemplate = ldr.getString("GENESYS_API_BASE_TEMPLATE", "https://api.%s", false)
	cfg.Genesys.LoginBaseTemplate = ldr.getString("GENESYS_LOGIN_BASE_TEMPLATE", "https://login.%s", false)

	cfg.WhatsApp.Provider = strings.ToLower(ldr.getString("WHATSAPP_PROVIDER", "meta", false))
	cfg.WhatsApp.GraphBaseURL = ldr.getString("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com", false)
	cfg.WhatsApp.APIVersion = ldr.getString("WHATSAPP_API_VERSION", "v18.0", false)
	cfg.WhatsApp.TokenLifetimeSecond = ldr.getInt("WHATSAPP_TOKEN_LIFETIME_SECONDS", 3600, false)

	cfg.Pipeline.Directions = ldr.getStringSlice("PIPELINE_DIRECTIONS", false)
	if len(cfg.Pipeline.Directions) == 0 {
		cfg.Pipeline.Directions = append([]string(nil), AllDirections...)
	}
	for _, d := range cfg.Pipeline.Directions {
		if _, ok := cfg.Queues.ForDirection(d); !ok {
			ldr.addError(fmt.Sprintf("PIPELINE_DIRECTIONS contains unknown direction %q", d))
		}
	}
	cfg.Pipeline.UnsupportedMIMEPolicy = ldr.getString("UNSUPPORTED_MIME_POLICY", "reject", false)
	cfg.Pipeline.AudioTextPolicy = ldr.getString("AUDIO_TEXT_POLICY", "separate_message", false)
	cfg.Pipeline.CaptionMaxChars = ldr.getInt("CAPTION_MAX_CHARS", 1024, false)
	cfg.Pipeline.HTTPTimeoutMs = ldr.getInt("HTTP_TIMEOUT_MS", 10000, false)
	cfg.Pipeline.CorrelationAttempts = ldr.getInt("CORRELATION_POLL_ATTEMPTS", 3, false)
	cfg.Pipeline.CorrelationDelayMs = ldr.getInt("CORRELATION_POLL_DELAY_MS", 1000, false)

	if !oneOf(cfg.Genesys.Provider, "genesys", "mock") {
		ldr.addError("GENESYS_PROVIDER must be one of genesys, mock")
	}
	if !oneOf(cfg.WhatsApp.Provider, "meta", "mock") {
		ldr.addError("WHATSAPP_PROVIDER must be one of meta, mock")
	}
	if !transformer.UnsupportedMIMEPolicy(cfg.Pipeline.UnsupportedMIMEPolicy).Valid() {
		ldr.addError("UNSUPPORTED_MIME_POLICY must be one of reject, convert_to_document, text_fallback")
	}
	if !transformer.AudioTextPolicy(cfg.Pipeline.AudioTextPolicy).Valid() {
		ldr.addError("AUDIO_TEXT_POLICY must be one of separate_message, discard_text, text_only")
	}
	if cfg.Pipeline.CorrelationAttempts < 1 {
		ldr.addError("CORRELATION_POLL_ATTEMPTS must be >= 1")
	}

	cfg.Health.Port = ldr.getInt("HEALTH_PORT", 8090, false)
	cfg.Health.HandlerTimeoutMs = ldr.getInt("HEALTH_HANDLER_TIMEOUT_MS", 500, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DedupTTL returns the lifetime of a dedup ledger entry.
func (c RedisConfig) DedupTTL() time.Duration {
	if c.DedupTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.DedupTTLHours) * time.Hour
}

// HTTPTimeout returns the default timeout applied to external API calls.
func (c PipelineConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

// CorrelationDelay returns the fixed delay between correlation lookups.
func (c PipelineConfig) CorrelationDelay() time.Duration {
	return time.Duration(c.CorrelationDelayMs) * time.Millisecond
}

// HandlerTimeout bounds a readiness probe evaluation.
func (c HealthConfig) HandlerTimeout() time.Duration {
	return time.Duration(c.HandlerTimeoutMs) * time.Millisecond
}

// Enabled reports whether a direction's consumer should run.
func (c PipelineConfig) Enabled(direction string) bool {
	for _, d := range c.Directions {
		if d == direction {
			return true
		}
	}
	return false
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) lookup(key string, required bool) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	if ok && val != "" {
		return val, true
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return "", false
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := l.lookup(key, required); ok {
		return val
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func oneOf(val string, allowed ...string) bool {
	for _, a := range allowed {
		if val == a {
			return true
		}
	}
	return false
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
