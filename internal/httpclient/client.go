// Package httpclient is the JSON-over-HTTP plumbing shared by the
// collaborator and provider clients.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
)

// HeaderCorrelationID is sent on every outbound call for cross-system tracing.
const HeaderCorrelationID = "X-Correlation-ID"

const defaultBodyLimit int64 = 16 * 1024

// Doer abstracts the http.Client Do method for easier testing.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type correlationKey struct{}

// WithCorrelationID returns a context carrying the correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored in ctx, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Client performs JSON requests with bounded response bodies.
type Client struct {
	doer         Doer
	maxBodyBytes int64
}

// New wraps doer. A nil doer falls back to an http.Client with timeout.
func New(doer Doer, timeout time.Duration) *Client {
	if doer == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{doer: doer, maxBodyBytes: defaultBodyLimit}
}

// Request describes one JSON call. Op names the call in errors.
type Request struct {
	Op      string
	Method  string
	URL     string
	Headers http.Header
	Body    any
}

// Do sends req and decodes a 2xx response into out when out is non-nil.
// Non-2xx responses are returned as *errclass.HTTPError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return errclass.WrapFatal(fmt.Errorf("%s: encode request: %w", req.Op, err))
		}
		body = bytes.NewReader(buf)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return errclass.WrapConfiguration(fmt.Errorf("%s: new request: %w", req.Op, err))
	}
	for k, vals := range req.Headers {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if id := CorrelationID(ctx); id != "" {
		httpReq.Header.Set(HeaderCorrelationID, id)
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: http do: %w", req.Op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", req.Op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errclass.NewHTTPError(req.Op, resp.StatusCode, string(data))
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errclass.WrapTransient(fmt.Errorf("%s: decode response: %w", req.Op, err))
	}
	return nil
}

// ClampTimeout bounds a per-call timeout to [lo, hi].
func ClampTimeout(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
