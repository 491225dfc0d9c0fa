package transformer

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

func input(payload models.Payload) Input {
	return Input{
		TenantID:      "tenant-a",
		PhoneNumberID: "106540352242922",
		InternalID:    "b0c9c2b0-1f3a-4d2d-9e3f-123456789abc",
		CorrelationID: "corr-1",
		To:            "919876543210",
		Payload:       payload,
	}
}

func TestTransformTextOnly(t *testing.T) {
	tr := New(Options{}, zerolog.Nop())
	out, err := tr.Transform(input(models.Payload{Text: "  hello  "}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one output, got %d", len(out))
	}
	msg := out[0].ChannelPayload
	if msg.Type != models.KindText || msg.Text == nil || msg.Text.Body != "hello" {
		t.Fatalf("unexpected text message: %+v", msg)
	}
	if msg.To != "919876543210" || msg.MessagingProduct != "whatsapp" {
		t.Fatalf("unexpected envelope fields: %+v", msg)
	}
	if out[0].Metadata.PhoneNumberID != "106540352242922" || out[0].Metadata.CorrelationID != "corr-1" {
		t.Fatalf("unexpected metadata: %+v", out[0].Metadata)
	}
}

func TestTransformCaptionTruncation(t *testing.T) {
	tr := New(Options{}, zerolog.Nop())
	out, err := tr.Transform(input(models.Payload{
		Text:  strings.Repeat("é", 1500),
		Media: &models.Media{URL: "https://cdn.example.com/a.png", MIMEType: "image/png"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img := out[0].ChannelPayload.Image
	if img == nil {
		t.Fatalf("expected image payload, got %+v", out[0].ChannelPayload)
	}
	if got := len([]rune(img.Caption)); got != 1024 {
		t.Fatalf("expected caption of 1024 characters, got %d", got)
	}
}

func TestTransformImageWithoutTextOmitsCaption(t *testing.T) {
	tr := New(Options{}, zerolog.Nop())
	out, err := tr.Transform(input(models.Payload{
		Text:  "   ",
		Media: &models.Media{URL: "https://cdn.example.com/v.mp4", MIMEType: "video/mp4"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := out[0].ChannelPayload.Video; v == nil || v.Caption != "" {
		t.Fatalf("expected captionless video, got %+v", out[0].ChannelPayload)
	}
}

func TestTransformAudioPolicies(t *testing.T) {
	payload := models.Payload{
		Text:  "listen to this",
		Media: &models.Media{URL: "https://cdn.example.com/a.ogg", MIMEType: "audio/ogg"},
	}

	out, err := New(Options{}, zerolog.Nop()).Transform(input(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected audio and text outputs, got %d", len(out))
	}
	if out[0].ChannelPayload.Type != models.KindAudio || out[1].ChannelPayload.Type != models.KindText {
		t.Fatalf("expected [audio, text], got [%s, %s]", out[0].ChannelPayload.Type, out[1].ChannelPayload.Type)
	}
	if out[0].ChannelPayload.Audio.Caption != "" {
		t.Fatalf("audio must never carry a caption")
	}
	if out[1].ChannelPayload.Text.Body != "listen to this" {
		t.Fatalf("unexpected text body %q", out[1].ChannelPayload.Text.Body)
	}

	out, _ = New(Options{AudioText: AudioDiscardText}, zerolog.Nop()).Transform(input(payload))
	if len(out) != 1 || out[0].ChannelPayload.Type != models.KindAudio {
		t.Fatalf("discard_text should emit audio only, got %+v", out)
	}

	out, _ = New(Options{AudioText: AudioTextOnly}, zerolog.Nop()).Transform(input(payload))
	if len(out) != 1 || out[0].ChannelPayload.Type != models.KindText {
		t.Fatalf("text_only should emit text only, got %+v", out)
	}

	out, _ = New(Options{}, zerolog.Nop()).Transform(input(models.Payload{Media: payload.Media}))
	if len(out) != 1 || out[0].ChannelPayload.Audio == nil {
		t.Fatalf("audio alone should emit one audio output, got %+v", out)
	}
}

func TestTransformUnsupportedMIME(t *testing.T) {
	payload := models.Payload{
		Text:  "see attached",
		Media: &models.Media{URL: "https://cdn.example.com/blob", MIMEType: "application/xyz"},
	}

	_, err := New(Options{UnsupportedMIME: UnsupportedReject}, zerolog.Nop()).Transform(input(payload))
	if err == nil {
		t.Fatalf("expected reject policy to fail")
	}
	if c := errclass.Classify(err); c.Category != errclass.CategoryValidation || c.Retryable {
		t.Fatalf("expected non-retryable validation error, got %+v", c)
	}

	out, err := New(Options{UnsupportedMIME: UnsupportedConvertToDocument}, zerolog.Nop()).Transform(input(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := out[0].ChannelPayload.Document
	if doc == nil || doc.Filename != FallbackFilename || doc.Caption != "see attached" {
		t.Fatalf("expected document conversion, got %+v", out[0].ChannelPayload)
	}

	out, err = New(Options{UnsupportedMIME: UnsupportedTextFallback}, zerolog.Nop()).Transform(input(payload))
	if err != nil || len(out) != 1 || out[0].ChannelPayload.Type != models.KindText {
		t.Fatalf("expected text fallback, got %+v err=%v", out, err)
	}

	_, err = New(Options{UnsupportedMIME: UnsupportedTextFallback}, zerolog.Nop()).Transform(input(models.Payload{Media: payload.Media}))
	if !errors.Is(err, errclass.ErrValidation) {
		t.Fatalf("expected validation error when fallback has no text, got %v", err)
	}
}

func TestTransformEmptyPayloadIsFatal(t *testing.T) {
	_, err := New(Options{}, zerolog.Nop()).Transform(input(models.Payload{}))
	if c := errclass.Classify(err); c.Category != errclass.CategoryFatal || c.Retryable {
		t.Fatalf("expected fatal classification, got %+v (%v)", c, err)
	}
}

func TestTransformDocumentFilename(t *testing.T) {
	tr := New(Options{}, zerolog.Nop())
	out, err := tr.Transform(input(models.Payload{
		Media: &models.Media{URL: "https://cdn.example.com/files/report.pdf?v=1", MIMEType: "application/pdf"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out[0].ChannelPayload.Document.Filename; got != "report.pdf" {
		t.Fatalf("expected report.pdf, got %q", got)
	}
}

func TestResolveFilename(t *testing.T) {
	cases := []struct {
		explicit, url, want string
	}{
		{"invoice.pdf", "https://cdn.example.com/files/report.pdf", "invoice.pdf"},
		{"", "https://cdn.example.com/files/report.pdf?v=1", "report.pdf"},
		{"", "https://cdn.example.com/files/Q3%20summary.xlsx", "Q3 summary.xlsx"},
		{"", "https://cdn.example.com/files/download", FallbackFilename},
		{"", "https://cdn.example.com/", FallbackFilename},
		{"", "::not a url", FallbackFilename},
	}
	for _, tc := range cases {
		if got := ResolveFilename(tc.explicit, tc.url); got != tc.want {
			t.Fatalf("ResolveFilename(%q, %q) = %q, want %q", tc.explicit, tc.url, got, tc.want)
		}
	}
}

func TestPolicyValid(t *testing.T) {
	for _, p := range []UnsupportedMIMEPolicy{UnsupportedReject, UnsupportedConvertToDocument, UnsupportedTextFallback} {
		if !p.Valid() {
			t.Fatalf("%q must be valid", p)
		}
	}
	for _, p := range []AudioTextPolicy{AudioSeparateMessage, AudioDiscardText, AudioTextOnly} {
		if !p.Valid() {
			t.Fatalf("%q must be valid", p)
		}
	}
	if UnsupportedMIMEPolicy("convert-to-document").Valid() || AudioTextPolicy("").Valid() {
		t.Fatalf("unknown policies must be invalid")
	}
}
