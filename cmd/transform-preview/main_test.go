package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

const envelope = `{
	"internalId": "3f0c2a4e-8b7d-4c1e-9a2b-5d6e7f8a9b0c",
	"tenantId": "tenant-a",
	"conversationId": "conv-1",
	"waId": "919876543210",
	"phoneNumberId": "998877",
	"timestamp": 1700000000,
	"type": "message",
	"payload": {"text": "quarterly numbers", "media": {"url": "https://cdn.example.com/files/report.pdf", "mime_type": "application/pdf"}}
}`

func TestPreviewPrintsOutputs(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCommand(strings.NewReader(envelope), &out, &errOut)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v (%s)", err, errOut.String())
	}

	var outputs []models.TransformedOutput
	if err := json.Unmarshal(out.Bytes(), &outputs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("expected one output, got %d", len(outputs))
	}
	doc := outputs[0].ChannelPayload.Document
	if doc == nil || doc.Filename != "report.pdf" || doc.Caption != "quarterly numbers" {
		t.Fatalf("unexpected document payload %+v", outputs[0].ChannelPayload)
	}
}

func TestPreviewRejectsInvalidEnvelope(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCommand(strings.NewReader(`{"tenantId":"t"}`), &out, &errOut)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid envelope") {
		t.Fatalf("expected invalid envelope error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("nothing should be printed for an invalid envelope")
	}
}

func TestPreviewRejectsUnknownPolicies(t *testing.T) {
	cases := [][]string{
		{"--unsupported-mime", "convert-to-document"},
		{"--audio-text", "separate"},
	}
	for _, args := range cases {
		var out, errOut bytes.Buffer
		cmd := newRootCommand(strings.NewReader(envelope), &out, &errOut)
		cmd.SetArgs(args)
		if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), args[0]) {
			t.Fatalf("%v: expected flag error, got %v", args, err)
		}
		if out.Len() != 0 {
			t.Fatalf("%v: nothing should be printed", args)
		}
	}
}

func TestPreviewAppliesPolicyFlags(t *testing.T) {
	audio := strings.Replace(envelope, `"https://cdn.example.com/files/report.pdf", "mime_type": "application/pdf"`, `"https://cdn.example.com/a.ogg", "mime_type": "audio/ogg"`, 1)
	var out, errOut bytes.Buffer
	cmd := newRootCommand(strings.NewReader(audio), &out, &errOut)
	cmd.SetArgs([]string{"--audio-text", "discard_text"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var outputs []models.TransformedOutput
	if err := json.Unmarshal(out.Bytes(), &outputs); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(outputs) != 1 || outputs[0].ChannelPayload.Type != models.KindAudio {
		t.Fatalf("expected audio only, got %+v", outputs)
	}
}
