package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/httpclient"
)

func newServer(t *testing.T, status int, body string) (*Client, *string) {
	t.Helper()
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path + "|" + r.Header.Get(httpclient.HeaderCorrelationID)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/", 0, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, &path
}

func TestGenesysCredentials(t *testing.T) {
	c, path := newServer(t, http.StatusOK, `{"clientId":"id","clientSecret":"secret","region":"mypurecloud.com","integrationId":"int-1","timeoutMs":7000}`)
	ctx := httpclient.WithCorrelationID(context.Background(), "corr-1")

	creds, err := c.GenesysCredentials(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.IntegrationID != "int-1" || creds.Region != "mypurecloud.com" || creds.Timeout().Milliseconds() != 7000 {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if *path != "/tenants/tenant-a/credentials/genesys|corr-1" {
		t.Fatalf("unexpected request %q", *path)
	}
}

func TestGenesysCredentialsMissingIntegration(t *testing.T) {
	c, _ := newServer(t, http.StatusOK, `{"clientId":"id","clientSecret":"secret","region":"r"}`)
	_, err := c.GenesysCredentials(context.Background(), "tenant-a")
	if cl := errclass.Classify(err); cl.Category != errclass.CategoryConfiguration || cl.Retryable {
		t.Fatalf("expected configuration error, got %+v (%v)", cl, err)
	}
}

func TestWhatsAppCredentialsNotFound(t *testing.T) {
	c, _ := newServer(t, http.StatusNotFound, `{"error":"unknown tenant"}`)
	_, err := c.WhatsAppCredentials(context.Background(), "ghost")
	if cl := errclass.Classify(err); cl.Category != errclass.CategoryConfiguration {
		t.Fatalf("expected configuration error for 404, got %+v (%v)", cl, err)
	}
}

func TestCollaboratorAuthFailureIsConfiguration(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c, _ := newServer(t, status, `{"error":"bad service key"}`)
		_, err := c.GenesysCredentials(context.Background(), "tenant-a")
		if cl := errclass.Classify(err); cl.Category != errclass.CategoryConfiguration || cl.Retryable {
			t.Fatalf("status %d: expected configuration error, got %+v (%v)", status, cl, err)
		}
	}
}

func TestWhatsAppCredentialsServerError(t *testing.T) {
	c, _ := newServer(t, http.StatusBadGateway, `upstream down`)
	_, err := c.WhatsAppCredentials(context.Background(), "tenant-a")
	if cl := errclass.Classify(err); cl.Category != errclass.CategoryTransient || !cl.Retryable {
		t.Fatalf("expected transient error, got %+v (%v)", cl, err)
	}
}

func TestWhatsAppCredentials(t *testing.T) {
	c, path := newServer(t, http.StatusOK, `{"accessToken":"EAAG","phoneNumberId":"106540352242922","expiresIn":5184000}`)
	creds, err := c.WhatsAppCredentials(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.AccessToken != "EAAG" || creds.PhoneNumberID != "106540352242922" || creds.ExpiresIn != 5184000 {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if *path != "/tenants/tenant-a/credentials/whatsapp|" {
		t.Fatalf("unexpected request %q", *path)
	}
}
