// Package transformer turns provider-neutral message payloads into WhatsApp
// Graph API messages, applying the channel's caption, filename and media
// type rules.
package transformer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/errclass"
	"github.com/shabibmr/waba-xypr-sub001/internal/mime"
	"github.com/shabibmr/waba-xypr-sub001/internal/models"
)

// UnsupportedMIMEPolicy decides what happens to media WhatsApp cannot carry.
type UnsupportedMIMEPolicy string

const (
	UnsupportedReject            UnsupportedMIMEPolicy = "reject"
	UnsupportedConvertToDocument UnsupportedMIMEPolicy = "convert_to_document"
	UnsupportedTextFallback      UnsupportedMIMEPolicy = "text_fallback"
)

// Valid reports whether p is a known policy.
func (p UnsupportedMIMEPolicy) Valid() bool {
	switch p {
	case UnsupportedReject, UnsupportedConvertToDocument, UnsupportedTextFallback:
		return true
	}
	return false
}

// AudioTextPolicy decides what happens to text sent along with audio, since
// WhatsApp audio messages cannot carry a caption.
type AudioTextPolicy string

const (
	AudioSeparateMessage AudioTextPolicy = "separate_message"
	AudioDiscardText     AudioTextPolicy = "discard_text"
	AudioTextOnly        AudioTextPolicy = "text_only"
)

// Valid reports whether p is a known policy.
func (p AudioTextPolicy) Valid() bool {
	switch p {
	case AudioSeparateMessage, AudioDiscardText, AudioTextOnly:
		return true
	}
	return false
}

// DefaultCaptionMaxChars is WhatsApp's caption limit.
const DefaultCaptionMaxChars = 1024

// Options configures a Transformer.
type Options struct {
	UnsupportedMIME UnsupportedMIMEPolicy
	AudioText       AudioTextPolicy
	CaptionMaxChars int
}

// Input is a provider-neutral message addressed to a WhatsApp user.
type Input struct {
	TenantID      string
	PhoneNumberID string
	InternalID    string
	CorrelationID string
	To            string
	Payload       models.Payload
}

// Transformer converts Inputs into WhatsApp messages.
type Transformer struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Transformer, filling unset options with defaults.
func New(opts Options, logger zerolog.Logger) *Transformer {
	if opts.UnsupportedMIME == "" {
		opts.UnsupportedMIME = UnsupportedReject
	}
	if opts.AudioText == "" {
		opts.AudioText = AudioSeparateMessage
	}
	if opts.CaptionMaxChars <= 0 {
		opts.CaptionMaxChars = DefaultCaptionMaxChars
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Transformer{opts: opts, logger: logger.With().Str("component", "transformer").Logger()}
}

// Transform returns the ordered WhatsApp messages for in. Media always comes
// before text when a payload is split.
func (t *Transformer) Transform(in Input) ([]models.TransformedOutput, error) {
	text := strings.TrimSpace(in.Payload.Text)
	media := in.Payload.Media

	if media == nil {
		if text == "" {
			return nil, errclass.WrapFatal(errors.New("transformer: payload has neither text nor media"))
		}
		return []models.TransformedOutput{t.output(in, textMessage(in.To, text))}, nil
	}

	kind, supported := mime.Classify(media.MIMEType)
	if !supported {
		switch t.opts.UnsupportedMIME {
		case UnsupportedConvertToDocument:
			t.logger.Info().
				Str("internal_id", in.InternalID).
				Str("mime_type", media.MIMEType).
				Msg("transformer: sending unsupported media as document")
			kind = models.KindDocument
		case UnsupportedTextFallback:
			if text == "" {
				return nil, errclass.WrapValidation(fmt.Errorf("transformer: unsupported media type %q and no text to fall back to", media.MIMEType))
			}
			t.logger.Warn().
				Str("internal_id", in.InternalID).
				Str("mime_type", media.MIMEType).
				Msg("transformer: dropping unsupported media, sending text only")
			return []models.TransformedOutput{t.output(in, textMessage(in.To, text))}, nil
		default:
			return nil, errclass.WrapValidation(fmt.Errorf("transformer: unsupported media type %q", media.MIMEType))
		}
	}

	if kind == models.KindAudio {
		return t.audio(in, text), nil
	}

	wm := &models.WAMedia{Link: media.URL, Caption: t.caption(in, text)}
	if kind == models.KindDocument {
		wm.Filename = ResolveFilename(media.Filename, media.URL)
	}
	return []models.TransformedOutput{t.output(in, mediaMessage(in.To, kind, wm))}, nil
}

func (t *Transformer) audio(in Input, text string) []models.TransformedOutput {
	audio := t.output(in, mediaMessage(in.To, models.KindAudio, &models.WAMedia{Link: in.Payload.Media.URL}))
	if text == "" {
		return []models.TransformedOutput{audio}
	}
	switch t.opts.AudioText {
	case AudioDiscardText:
		t.logger.Warn().
			Str("internal_id", in.InternalID).
			Int("text_chars", utf8.RuneCountInString(text)).
			Msg("transformer: discarding text sent with audio")
		return []models.TransformedOutput{audio}
	case AudioTextOnly:
		return []models.TransformedOutput{t.output(in, textMessage(in.To, text))}
	default:
		return []models.TransformedOutput{audio, t.output(in, textMessage(in.To, text))}
	}
}

func (t *Transformer) caption(in Input, text string) string {
	if text == "" {
		return ""
	}
	n := utf8.RuneCountInString(text)
	if n <= t.opts.CaptionMaxChars {
		return text
	}
	t.logger.Warn().
		Str("internal_id", in.InternalID).
		Int("caption_chars", n).
		Int("limit", t.opts.CaptionMaxChars).
		Msg("transformer: caption truncated")
	return string([]rune(text)[:t.opts.CaptionMaxChars])
}

func (t *Transformer) output(in Input, msg models.WAMessage) models.TransformedOutput {
	return models.TransformedOutput{
		Metadata: models.OutputMetadata{
			TenantID:      in.TenantID,
			PhoneNumberID: in.PhoneNumberID,
			InternalID:    in.InternalID,
			CorrelationID: in.CorrelationID,
		},
		ChannelPayload: msg,
	}
}

func textMessage(to, text string) models.WAMessage {
	msg := base(to, models.KindText)
	msg.Text = &models.WAText{Body: text}
	return msg
}

func mediaMessage(to string, kind models.Kind, media *models.WAMedia) models.WAMessage {
	msg := base(to, kind)
	switch kind {
	case models.KindImage:
		msg.Image = media
	case models.KindVideo:
		msg.Video = media
	case models.KindDocument:
		msg.Document = media
	case models.KindAudio:
		msg.Audio = media
	}
	return msg
}

func base(to string, kind models.Kind) models.WAMessage {
	return models.WAMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             kind,
	}
}
