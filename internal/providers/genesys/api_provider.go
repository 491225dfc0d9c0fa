// Package genesys delivers messages and receipts to Genesys Cloud Open
// Messaging integrations.
package genesys

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/httpclient"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

const (
	minTimeout = 5 * time.Second
	maxTimeout = 15 * time.Second
)

// APIOption customises the API provider.
type APIOption func(*APIProvider)

// WithAPIHTTPClient overrides the HTTP client.
func WithAPIHTTPClient(client httpclient.Doer) APIOption {
	return func(p *APIProvider) {
		if client != nil {
			p.http = httpclient.New(client, 0)
		}
	}
}

// WithAPIDefaultTimeout sets the timeout used when a target carries none.
func WithAPIDefaultTimeout(d time.Duration) APIOption {
	return func(p *APIProvider) {
		if d > 0 {
			p.defaultTimeout = d
		}
	}
}

// APIProvider implements Provider over HTTPS.
type APIProvider struct {
	logger         zerolog.Logger
	baseTemplate   string
	http           *httpclient.Client
	defaultTimeout time.Duration
}

// NewAPIProvider constructs a provider. baseTemplate contains one %s that is
// replaced with the tenant region, e.g. "https://api.%s".
func NewAPIProvider(baseTemplate string, logger zerolog.Logger, opts ...APIOption) (*APIProvider, error) {
	if !strings.Contains(baseTemplate, "%s") {
		return nil, errors.New("genesys provider: base template must contain %s")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &APIProvider{
		logger:         logger.With().Str("component", "genesys").Logger(),
		baseTemplate:   baseTemplate,
		http:           httpclient.New(nil, maxTimeout),
		defaultTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// SendMessage posts an inbound Open Messaging message.
func (p *APIProvider) SendMessage(ctx context.Context, target Target, msg models.OpenMessage) (*models.OpenMessageResult, error) {
	endpoint, err := p.integrationURL(target, "message")
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.withTimeout(ctx, target)
	defer cancel()

	var result models.OpenMessageResult
	if err := p.http.Do(ctx, p.request("genesys provider: send message", http.MethodPost, endpoint, target, msg), &result); err != nil {
		return nil, err
	}
	p.logger.Debug().Str("integration_id", target.IntegrationID).Str("message_id", result.ID).Msg("genesys: message accepted")
	return &result, nil
}

// SendReceipt posts a delivery receipt for a previously sent agent message.
func (p *APIProvider) SendReceipt(ctx context.Context, target Target, receipt models.OpenReceipt) error {
	endpoint, err := p.integrationURL(target, "receipt")
	if err != nil {
		return err
	}
	ctx, cancel := p.withTimeout(ctx, target)
	defer cancel()

	return p.http.Do(ctx, p.request("genesys provider: send receipt", http.MethodPost, endpoint, target, receipt), nil)
}

// MessageDetails reads the conversation identifiers of a delivered message.
func (p *APIProvider) MessageDetails(ctx context.Context, target Target, messageID string) (*models.MessageDetails, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, errclass.WrapValidation(errors.New("genesys provider: message id is required"))
	}
	base, err := p.base(target)
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.withTimeout(ctx, target)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/v2/conversations/messages/%s/details", base, url.PathEscape(messageID))
	var details models.MessageDetails
	if err := p.http.Do(ctx, p.request("genesys provider: message details", http.MethodGet, endpoint, target, nil), &details); err != nil {
		return nil, err
	}
	return &details, nil
}

func (p *APIProvider) base(target Target) (string, error) {
	if strings.TrimSpace(target.Region) == "" {
		return "", errclass.WrapConfiguration(errors.New("genesys provider: region is required"))
	}
	if strings.TrimSpace(target.AccessToken) == "" {
		return "", errclass.WrapConfiguration(errors.New("genesys provider: access token is required"))
	}
	return strings.TrimRight(fmt.Sprintf(p.baseTemplate, target.Region), "/"), nil
}

func (p *APIProvider) integrationURL(target Target, kind string) (string, error) {
	base, err := p.base(target)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(target.IntegrationID) == "" {
		return "", errclass.WrapConfiguration(errors.New("genesys provider: integration id is required"))
	}
	return fmt.Sprintf("%s/api/v2/conversations/messages/%s/inbound/open/%s", base, url.PathEscape(target.IntegrationID), kind), nil
}

func (p *APIProvider) withTimeout(ctx context.Context, target Target) (context.Context, context.CancelFunc) {
	timeout := target.Timeout
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	return context.WithTimeout(ctx, httpclient.ClampTimeout(timeout, minTimeout, maxTimeout))
}

func (p *APIProvider) request(op, method, endpoint string, target Target, body any) httpclient.Request {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+target.AccessToken)
	return httpclient.Request{Op: op, Method: method, URL: endpoint, Headers: headers, Body: body}
}
