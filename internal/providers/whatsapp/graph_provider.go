// Package whatsapp delivers messages through the WhatsApp Business Platform
// Cloud API.
package whatsapp

import (
	"context"
	"encoding/json"
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
)

const (
	minTimeout = 5 * time.Second
	maxTimeout = 15 * time.Second
)

// GraphOption customises the behaviour of the Graph API provider.
type GraphOption func(*GraphProvider)

// WithGraphHTTPClient overrides the HTTP client used to talk to Graph API.
func WithGraphHTTPClient(client httpclient.Doer) GraphOption {
	return func(p *GraphProvider) {
		if client != nil {
			p.http = httpclient.New(client, 0)
		}
	}
}

// WithGraphClock overrides the clock used for timestamps.
func WithGraphClock(now func() time.Time) GraphOption {
	return func(p *GraphProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithGraphDefaultTimeout sets the timeout used when a request carries none.
func WithGraphDefaultTimeout(d time.Duration) GraphOption {
	return func(p *GraphProvider) {
		if d > 0 {
			p.defaultTimeout = d
		}
	}
}

// GraphProvider implements Provider against the Meta Graph API.
type GraphProvider struct {
	logger         zerolog.Logger
	baseURL        string
	version        string
	http           *httpclient.Client
	now            func() time.Time
	defaultTimeout time.Duration
}

// NewGraphProvider constructs a Graph API provider.
func NewGraphProvider(baseURL, version string, logger zerolog.Logger, opts ...GraphOption) (*GraphProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("whatsapp graph provider: base URL is required")
	}
	if strings.TrimSpace(version) == "" {
		return nil, errors.New("whatsapp graph provider: api version is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &GraphProvider{
		logger:         logger.With().Str("component", "whatsapp").Logger(),
		baseURL:        baseURL,
		version:        strings.Trim(strings.TrimSpace(version), "/"),
		http:           httpclient.New(nil, maxTimeout),
		now:            time.Now,
		defaultTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

type graphResponse struct {
	Contacts []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type graphError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// Send posts one message to /{version}/{phoneNumberId}/messages.
func (p *GraphProvider) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if strings.TrimSpace(req.PhoneNumberID) == "" {
		return nil, errclass.WrapConfiguration(errors.New("whatsapp graph provider: phone number id is required"))
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return nil, errclass.WrapConfiguration(errors.New("whatsapp graph provider: access token is required"))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, httpclient.ClampTimeout(timeout, minTimeout, maxTimeout))
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s/messages", p.baseURL, p.version, url.PathEscape(req.PhoneNumberID))
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+req.AccessToken)

	var resp graphResponse
	err := p.http.Do(ctx, httpclient.Request{
		Op:      "whatsapp graph provider: send",
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: headers,
		Body:    req.Message,
	}, &resp)
	if err != nil {
		return nil, describeGraphError(err)
	}

	result := &SendResult{Code: http.StatusOK, Timestamp: p.now()}
	if len(resp.Messages) > 0 {
		result.MessageID = resp.Messages[0].ID
	}
	if len(resp.Contacts) > 0 {
		result.WaID = resp.Contacts[0].WaID
	}
	if result.MessageID == "" {
		return nil, errclass.WrapTransient(errors.New("whatsapp graph provider: response carried no message id"))
	}
	p.logger.Debug().
		Str("phone_number_id", req.PhoneNumberID).
		Str("message_id", result.MessageID).
		Str("type", string(req.Message.Type)).
		Msg("whatsapp: message accepted")
	return result, nil
}

// describeGraphError replaces the raw body of an HTTP error with Graph's
// error message when the body parses.
func describeGraphError(err error) error {
	var httpErr *errclass.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	var ge graphError
	if json.Unmarshal([]byte(httpErr.Body), &ge) != nil || ge.Error.Message == "" {
		return err
	}
	msg := ge.Error.Message
	if ge.Error.Code != 0 {
		msg = fmt.Sprintf("graph error %d: %s", ge.Error.Code, msg)
	}
	return errclass.NewHTTPError(httpErr.Op, httpErr.StatusCode, msg)
}
