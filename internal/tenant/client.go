// Package tenant is the client for the tenant-service credential endpoints.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/httpclient"
)

// GenesysCredentials are a tenant's Open Messaging integration settings.
type GenesysCredentials struct {
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"clientSecret"`
	Region        string `json:"region"`
	IntegrationID string `json:"integrationId"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// WhatsAppCredentials are a tenant's WhatsApp Business Platform settings.
type WhatsAppCredentials struct {
	AccessToken   string `json:"accessToken"`
	PhoneNumberID string `json:"phoneNumberId"`
	WabaID        string `json:"wabaId,omitempty"`
	ExpiresIn     int    `json:"expiresIn,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// Timeout returns the tenant's preferred per-call timeout, zero when unset.
func (c GenesysCredentials) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Timeout returns the tenant's preferred per-call timeout, zero when unset.
func (c WhatsAppCredentials) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(doer httpclient.Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = httpclient.New(doer, 0)
		}
	}
}

// Client reads tenant credentials.
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// NewClient constructs a tenant-service client.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("tenant client: base URL is required")
	}
	c := &Client{baseURL: baseURL, http: httpclient.New(nil, timeout)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// GenesysCredentials loads the tenant's Genesys credentials. A tenant without
// an integration id is a configuration error.
func (c *Client) GenesysCredentials(ctx context.Context, tenantID string) (GenesysCredentials, error) {
	var creds GenesysCredentials
	if err := c.get(ctx, "tenant client: genesys credentials", tenantID, "genesys", &creds); err != nil {
		return GenesysCredentials{}, err
	}
	switch {
	case strings.TrimSpace(creds.IntegrationID) == "":
		return GenesysCredentials{}, errclass.WrapConfiguration(fmt.Errorf("tenant %s: genesys integration id is missing", tenantID))
	case creds.ClientID == "" || creds.ClientSecret == "" || creds.Region == "":
		return GenesysCredentials{}, errclass.WrapConfiguration(fmt.Errorf("tenant %s: genesys client credentials are incomplete", tenantID))
	}
	return creds, nil
}

// WhatsAppCredentials loads the tenant's WhatsApp credentials.
func (c *Client) WhatsAppCredentials(ctx context.Context, tenantID string) (WhatsAppCredentials, error) {
	var creds WhatsAppCredentials
	if err := c.get(ctx, "tenant client: whatsapp credentials", tenantID, "whatsapp", &creds); err != nil {
		return WhatsAppCredentials{}, err
	}
	switch {
	case strings.TrimSpace(creds.PhoneNumberID) == "":
		return WhatsAppCredentials{}, errclass.WrapConfiguration(fmt.Errorf("tenant %s: whatsapp phone number id is missing", tenantID))
	case strings.TrimSpace(creds.AccessToken) == "":
		return WhatsAppCredentials{}, errclass.WrapConfiguration(fmt.Errorf("tenant %s: whatsapp access token is missing", tenantID))
	}
	return creds, nil
}

func (c *Client) get(ctx context.Context, op, tenantID, kind string, out any) error {
	endpoint := fmt.Sprintf("%s/tenants/%s/credentials/%s", c.baseURL, url.PathEscape(tenantID), kind)
	err := c.http.Do(ctx, httpclient.Request{Op: op, Method: http.MethodGet, URL: endpoint}, out)
	switch errclass.StatusCode(err) {
	case http.StatusNotFound:
		return errclass.WrapConfiguration(fmt.Errorf("tenant %s: %s credentials not found: %w", tenantID, kind, err))
	case http.StatusUnauthorized, http.StatusForbidden:
		return errclass.WrapConfiguration(fmt.Errorf("tenant %s: tenant service rejected the worker: %w", tenantID, err))
	}
	return err
}
