// Command transform-preview prints the WhatsApp messages the pipeline would
// send for an outbound-ready envelope read from stdin or a file.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shabibmr/waba-xypr-sub001/internal/transformer"
	"github.com/shabibmr/waba-xypr-sub001/internal/validator"
)

func main() {
	cmd := newRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type previewOptions struct {
	file            string
	unsupportedMIME string
	audioText       string
	captionMax      int
	verbose         bool
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	opts := previewOptions{}
	cmd := &cobra.Command{
		Use:           "transform-preview",
		Short:         "Preview WhatsApp payloads for an outbound-ready envelope",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPreview(opts, stdin, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "read the envelope from a file instead of stdin")
	flags.StringVar(&opts.unsupportedMIME, "unsupported-mime", string(transformer.UnsupportedReject), "unsupported MIME policy: reject, convert_to_document, text_fallback")
	flags.StringVar(&opts.audioText, "audio-text", string(transformer.AudioSeparateMessage), "audio with text policy: separate_message, discard_text, text_only")
	flags.IntVar(&opts.captionMax, "caption-max", transformer.DefaultCaptionMaxChars, "maximum caption length in characters")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log transformer decisions to stderr")
	return cmd
}

func runPreview(opts previewOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	unsupported := transformer.UnsupportedMIMEPolicy(opts.unsupportedMIME)
	if !unsupported.Valid() {
		return fmt.Errorf("--unsupported-mime must be one of reject, convert_to_document, text_fallback, got %q", opts.unsupportedMIME)
	}
	audioText := transformer.AudioTextPolicy(opts.audioText)
	if !audioText.Valid() {
		return fmt.Errorf("--audio-text must be one of separate_message, discard_text, text_only, got %q", opts.audioText)
	}

	src := stdin
	if opts.file != "" {
		f, err := os.Open(opts.file)
		if err != nil {
			return fmt.Errorf("open envelope: %w", err)
		}
		defer f.Close()
		src = f
	}
	raw, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read envelope: %w", err)
	}

	res := validator.Outbound(raw)
	if !res.Valid {
		return errors.New("invalid envelope: " + res.Reason)
	}
	msg := res.Data

	logger := zerolog.Nop()
	if opts.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()
	}
	tf := transformer.New(transformer.Options{
		UnsupportedMIME: unsupported,
		AudioText:       audioText,
		CaptionMaxChars: opts.captionMax,
	}, logger)

	outputs, err := tf.Transform(transformer.Input{
		TenantID:      msg.TenantID,
		PhoneNumberID: msg.PhoneNumberID,
		InternalID:    msg.InternalID,
		CorrelationID: msg.CorrelationID,
		To:            msg.WaID,
		Payload:       msg.Payload,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outputs)
}
