// Package state is the client for the state-manager conversation mapping.
package state

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

// Conversation maps a contact-center conversation onto a WhatsApp user.
type Conversation struct {
	WaID            string `json:"waId"`
	PhoneNumberID   string `json:"phoneNumberId"`
	TenantID        string `json:"tenantId"`
	InternalID      string `json:"internalId"`
	CommunicationID string `json:"communicationId,omitempty"`
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

// Client looks up conversation mappings.
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// NewClient constructs a state-manager client.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("state client: base URL is required")
	}
	c := &Client{baseURL: baseURL, http: httpclient.New(nil, timeout)}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Conversation returns the mapping for a conversation id. A mapping without a
// WhatsApp recipient cannot be delivered and is reported as a client error.
func (c *Client) Conversation(ctx context.Context, conversationID string) (Conversation, error) {
	endpoint := fmt.Sprintf("%s/state/conversation/%s", c.baseURL, url.PathEscape(conversationID))
	var conv Conversation
	err := c.http.Do(ctx, httpclient.Request{Op: "state client: conversation", Method: http.MethodGet, URL: endpoint}, &conv)
	if err != nil {
		if status := errclass.StatusCode(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
			return Conversation{}, errclass.WrapConfiguration(fmt.Errorf("conversation %s: state service rejected the worker: %w", conversationID, err))
		}
		return Conversation{}, err
	}
	if strings.TrimSpace(conv.WaID) == "" {
		return Conversation{}, errclass.WrapClient(fmt.Errorf("conversation %s has no whatsapp recipient", conversationID))
	}
	return conv, nil
}
