package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/tenant"
)

// CredentialSource loads tenant credentials. *tenant.Client implements it.
type CredentialSource interface {
	GenesysCredentials(ctx context.Context, tenantID string) (tenant.GenesysCredentials, error)
	WhatsAppCredentials(ctx context.Context, tenantID string) (tenant.WhatsAppCredentials, error)
}

// GenesysFetcher exchanges a tenant's client credentials for an Open
// Messaging access token.
type GenesysFetcher struct {
	Credentials CredentialSource
	// LoginBaseTemplate contains one %s replaced with the tenant region.
	LoginBaseTemplate string
	HTTPClient        *http.Client
	Now               func() time.Time
}

// Fetch implements Fetcher.
func (f *GenesysFetcher) Fetch(ctx context.Context, tenantID string) (Grant, error) {
	creds, err := f.Credentials.GenesysCredentials(ctx, tenantID)
	if err != nil {
		return Grant{}, err
	}

	tmpl := f.LoginBaseTemplate
	if tmpl == "" {
		tmpl = "https://login.%s"
	}
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     strings.TrimRight(fmt.Sprintf(tmpl, creds.Region), "/") + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	if f.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return Grant{}, classifyTokenError(err)
	}

	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	var lifetime time.Duration
	if !tok.Expiry.IsZero() {
		lifetime = tok.Expiry.Sub(now())
	}
	return Grant{AccessToken: tok.AccessToken, Lifetime: lifetime}, nil
}

// classifyTokenError maps an identity-provider failure onto the error
// taxonomy. Rejected client credentials need operator action.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		status := re.Response.StatusCode
		if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
			return errclass.WrapConfiguration(fmt.Errorf("genesys token: credentials rejected: %w", err))
		}
		return errclass.NewHTTPError("genesys token", status, string(re.Body))
	}
	return fmt.Errorf("genesys token: %w", err)
}

// WhatsAppFetcher returns the tenant's stored WhatsApp system-user token.
type WhatsAppFetcher struct {
	Credentials CredentialSource
	// DefaultLifetime applies when the tenant record carries no expiry.
	DefaultLifetime time.Duration
}

// Fetch implements Fetcher.
func (f *WhatsAppFetcher) Fetch(ctx context.Context, tenantID string) (Grant, error) {
	creds, err := f.Credentials.WhatsAppCredentials(ctx, tenantID)
	if err != nil {
		return Grant{}, err
	}
	lifetime := time.Duration(creds.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = f.DefaultLifetime
	}
	return Grant{AccessToken: creds.AccessToken, Lifetime: lifetime}, nil
}
