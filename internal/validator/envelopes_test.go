package validator

import (
	"strings"
	"testing"
)

const validOutbound = `{
	"internalId": "b0c9c2b0-1f3a-4d2d-9e3f-123456789abc",
	"tenantId": "tenant-a",
	"conversationId": "conv-1",
	"externalConversationId": "gen-conv-1",
	"waId": "919876543210",
	"phoneNumberId": "106540352242922",
	"timestamp": 1735689600,
	"type": "message",
	"payload": {"text": "hello"}
}`

func TestOutboundValid(t *testing.T) {
	res := Outbound([]byte(validOutbound))
	if !res.Valid {
		t.Fatalf("expected valid envelope, got reason %q", res.Reason)
	}
	if res.Data.TenantID != "tenant-a" || res.Data.Payload.Text != "hello" {
		t.Fatalf("unexpected data: %+v", res.Data)
	}
}

func TestOutboundRejections(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		reason string
	}{
		{"not json", `hello`, "not a JSON object"},
		{"array", `[1,2]`, "not a JSON object"},
		{"empty", `   `, "empty"},
		{"missing tenant", strings.Replace(validOutbound, `"tenantId": "tenant-a",`, "", 1), "tenantId is required"},
		{"bad internal id", strings.Replace(validOutbound, "b0c9c2b0-1f3a-4d2d-9e3f-123456789abc", "not-a-uuid", 1), "internalId"},
		{"wa id with plus", strings.Replace(validOutbound, `"919876543210"`, `"+919876543210"`, 1), "waId"},
		{"phone number id letters", strings.Replace(validOutbound, `"106540352242922"`, `"abc"`, 1), "phoneNumberId"},
		{"timestamp millis", strings.Replace(validOutbound, "1735689600", "1735689600000", 1), "timestamp"},
		{"timestamp string", strings.Replace(validOutbound, "1735689600", `"soon"`, 1), "decode"},
		{"wrong type", strings.Replace(validOutbound, `"type": "message"`, `"type": "event"`, 1), `type must be "message"`},
		{"empty payload", strings.Replace(validOutbound, `{"text": "hello"}`, `{}`, 1), "text or media"},
		{"media without mime", strings.Replace(validOutbound, `{"text": "hello"}`, `{"media": {"url": "https://cdn.example.com/a.png"}}`, 1), "mime_type"},
		{"media bad url", strings.Replace(validOutbound, `{"text": "hello"}`, `{"media": {"url": "file:///etc/passwd", "mime_type": "image/png"}}`, 1), "url"},
		{"text too long", strings.Replace(validOutbound, `"hello"`, `"`+strings.Repeat("a", MaxTextChars+1)+`"`, 1), "maximum length"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Outbound([]byte(tc.raw))
			if res.Valid {
				t.Fatalf("expected invalid envelope")
			}
			if !strings.Contains(res.Reason, tc.reason) {
				t.Fatalf("reason %q does not mention %q", res.Reason, tc.reason)
			}
		})
	}
}

const validInbound = `{
	"metadata": {"tenantId": "tenant-a", "externalMessageId": "wamid.HBgM", "correlationId": "corr-1"},
	"channelPayload": {
		"id": "wamid.HBgM",
		"channel": {"platform": "Open", "type": "Private", "messageId": "wamid.HBgM", "from": {"id": "919876543210", "idType": "Phone", "nickname": "Asha"}, "time": "2025-01-01T00:00:00.000Z"},
		"type": "Text",
		"text": "hi there",
		"direction": "Inbound"
	}
}`

func TestInbound(t *testing.T) {
	if res := Inbound([]byte(validInbound)); !res.Valid {
		t.Fatalf("expected valid inbound, got %q", res.Reason)
	}

	cases := map[string]string{
		strings.Replace(validInbound, `"direction": "Inbound"`, `"direction": "Outbound"`, 1):                                   "direction",
		strings.Replace(validInbound, `"correlationId": "corr-1"`, `"correlationId": ""`, 1):                                    "metadata.correlationId is required",
		strings.Replace(validInbound, `"text": "hi there",`, ``, 1):                                                             "text or an attachment",
		strings.Replace(validInbound, `"from": {"id": "919876543210", "idType": "Phone", "nickname": "Asha"}`, `"from": {}`, 1): "from.id",
	}
	for raw, reason := range cases {
		res := Inbound([]byte(raw))
		if res.Valid || !strings.Contains(res.Reason, reason) {
			t.Fatalf("expected failure mentioning %q, got %+v", reason, res)
		}
	}

	withAttachment := strings.Replace(validInbound, `"text": "hi there",`, `"content": [{"contentType": "Attachment", "attachment": {"mediaType": "Image", "url": "https://cdn.example.com/p.jpg"}}],`, 1)
	if res := Inbound([]byte(withAttachment)); !res.Valid {
		t.Fatalf("expected attachment-only inbound to pass, got %q", res.Reason)
	}
}

func TestStatus(t *testing.T) {
	raw := `{"tenantId":"tenant-a","externalConversationId":"conv-9","originalMessageId":"gen-msg-1","status":"delivered","timestamp":1735689600}`
	if res := Status([]byte(raw)); !res.Valid {
		t.Fatalf("expected valid status, got %q", res.Reason)
	}
	missing := `{"tenantId":"tenant-a","externalConversationId":"conv-9","status":"read","timestamp":1735689600}`
	if res := Status([]byte(missing)); res.Valid || !strings.Contains(res.Reason, "originalMessageId") {
		t.Fatalf("expected originalMessageId failure, got %+v", res)
	}
}

func TestWidget(t *testing.T) {
	raw := `{"tenantId":"tenant-a","conversationId":"conv-1","message":"on it","integrationId":"int-1"}`
	res := Widget([]byte(raw))
	if !res.Valid {
		t.Fatalf("expected valid widget reply, got %q", res.Reason)
	}
	p := WidgetPayload(res.Data)
	if p.Text != "on it" || p.Media != nil {
		t.Fatalf("unexpected payload %+v", p)
	}

	mediaOnly := `{"tenantId":"tenant-a","conversationId":"conv-1","media":{"url":"https://cdn.example.com/f.pdf","type":"application/pdf"}}`
	res = Widget([]byte(mediaOnly))
	if !res.Valid {
		t.Fatalf("expected media-only widget reply to pass, got %q", res.Reason)
	}
	if p := WidgetPayload(res.Data); p.Media == nil || p.Media.MIMEType != "application/pdf" {
		t.Fatalf("unexpected media payload %+v", p)
	}

	empty := `{"tenantId":"tenant-a","conversationId":"conv-1"}`
	if res := Widget([]byte(empty)); res.Valid {
		t.Fatalf("expected empty widget reply to fail")
	}
}
