package validator

import (
	"strings"

	"github.com/shabibmr/waba-xypr-sub001/internal/models"
	"github.com/shabibmr/waba-xypr-sub001/internal/util"
)

// Outbound validates an outbound-ready envelope.
func Outbound(raw []byte) Result[models.OutboundMessage] {
	var msg models.OutboundMessage
	if err := decodeObject(raw, &msg); err != nil {
		return fail[models.OutboundMessage]("%v", err)
	}
	if reason := structReason(&msg); reason != "" {
		return fail[models.OutboundMessage]("%s", reason)
	}
	if _, err := util.ParseEpochSeconds(msg.Timestamp); err != nil {
		return fail[models.OutboundMessage]("timestamp: %v", err)
	}
	if msg.Type != models.EnvelopeTypeMessage {
		return fail[models.OutboundMessage]("type must be %q, got %q", models.EnvelopeTypeMessage, msg.Type)
	}
	if reason := payloadReason(msg.Payload); reason != "" {
		return fail[models.OutboundMessage]("%s", reason)
	}
	return ok(&msg)
}

// Inbound validates an inbound-ready envelope carrying an Open Messaging body.
func Inbound(raw []byte) Result[models.InboundMessage] {
	var msg models.InboundMessage
	if err := decodeObject(raw, &msg); err != nil {
		return fail[models.InboundMessage]("%v", err)
	}
	if reason := structReason(&msg.Metadata); reason != "" {
		return fail[models.InboundMessage]("metadata.%s", reason)
	}

	body := msg.ChannelPayload
	if body.Direction != models.OpenDirectionInbound {
		return fail[models.InboundMessage]("channelPayload.direction must be %q, got %q", models.OpenDirectionInbound, body.Direction)
	}
	if body.Type != models.OpenTypeText && body.Type != models.OpenTypeStructured {
		return fail[models.InboundMessage]("channelPayload.type %q is not supported", body.Type)
	}
	if body.Channel.From == nil || strings.TrimSpace(body.Channel.From.ID) == "" {
		return fail[models.InboundMessage]("channelPayload.channel.from.id is required")
	}
	if err := util.EnsureMaxRunes("channelPayload.text", body.Text, MaxTextChars); err != nil {
		return fail[models.InboundMessage]("%v", err)
	}

	hasAttachment := false
	for i, c := range body.Content {
		if c.Attachment == nil {
			continue
		}
		if strings.TrimSpace(c.Attachment.URL) == "" {
			return fail[models.InboundMessage]("channelPayload.content[%d].attachment.url is required", i)
		}
		if strings.TrimSpace(c.Attachment.MediaType) == "" {
			return fail[models.InboundMessage]("channelPayload.content[%d].attachment.mediaType is required", i)
		}
		hasAttachment = true
	}
	if strings.TrimSpace(body.Text) == "" && !hasAttachment {
		return fail[models.InboundMessage]("channelPayload must contain text or an attachment")
	}
	return ok(&msg)
}

// Status validates a delivery-receipt envelope. Whether the status is
// forwarded is a routing decision, not a validation one.
func Status(raw []byte) Result[models.StatusMessage] {
	var msg models.StatusMessage
	if err := decodeObject(raw, &msg); err != nil {
		return fail[models.StatusMessage]("%v", err)
	}
	if reason := structReason(&msg); reason != "" {
		return fail[models.StatusMessage]("%s", reason)
	}
	if _, err := util.ParseEpochSeconds(msg.Timestamp); err != nil {
		return fail[models.StatusMessage]("timestamp: %v", err)
	}
	return ok(&msg)
}

// Widget validates an agent-widget reply envelope.
func Widget(raw []byte) Result[models.WidgetMessage] {
	var msg models.WidgetMessage
	if err := decodeObject(raw, &msg); err != nil {
		return fail[models.WidgetMessage]("%v", err)
	}
	if reason := structReason(&msg); reason != "" {
		return fail[models.WidgetMessage]("%s", reason)
	}
	if reason := payloadReason(WidgetPayload(&msg)); reason != "" {
		return fail[models.WidgetMessage]("%s", reason)
	}
	return ok(&msg)
}

// WidgetPayload converts a widget reply into the provider-neutral payload.
func WidgetPayload(msg *models.WidgetMessage) models.Payload {
	p := models.Payload{Text: msg.Message}
	if msg.Media != nil {
		p.Media = &models.Media{URL: msg.Media.URL, MIMEType: msg.Media.Type}
	}
	return p
}
