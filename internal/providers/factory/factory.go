// Package factory builds the external API providers selected by
// configuration.
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shabibmr/waba-xypr-sub001/internal/config"
	genesysprovider "github.com/shabibmr/waba-xypr-sub001/internal/providers/genesys"
	waprovider "github.com/shabibmr/waba-xypr-sub001/internal/providers/whatsapp"
)

// WhatsApp constructs the configured WhatsApp provider. Supports the Graph
// API ("meta") and mock backends.
func WhatsApp(cfg config.WhatsAppConfig, timeout time.Duration, logger zerolog.Logger) (waprovider.Provider, error) {
	backend := normalize(cfg.Provider, "meta")
	switch backend {
	case "meta":
		provider, err := waprovider.NewGraphProvider(cfg.GraphBaseURL, cfg.APIVersion, logger, waprovider.WithGraphDefaultTimeout(timeout))
		if err != nil {
			return nil, fmt.Errorf("factory: graph whatsapp provider init: %w", err)
		}
		logger.Info().
			Str("backend", "meta").
			Str("api_version", cfg.APIVersion).
			Msg("whatsapp provider initialised")
		return provider, nil
	case "mock":
		provider := waprovider.NewMockProvider(logger)
		logger.Info().
			Str("backend", "mock").
			Msg("whatsapp provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported whatsapp provider backend %q", cfg.Provider)
	}
}

// Genesys constructs the configured Open Messaging provider. Supports the
// Genesys Cloud API and mock backends.
func Genesys(cfg config.GenesysConfig, timeout time.Duration, logger zerolog.Logger) (genesysprovider.Provider, error) {
	backend := normalize(cfg.Provider, "genesys")
	switch backend {
	case "genesys":
		provider, err := genesysprovider.NewAPIProvider(cfg.APIBaseTemplate, logger, genesysprovider.WithAPIDefaultTimeout(timeout))
		if err != nil {
			return nil, fmt.Errorf("factory: genesys provider init: %w", err)
		}
		logger.Info().
			Str("backend", "genesys").
			Msg("genesys provider initialised")
		return provider, nil
	case "mock":
		provider := genesysprovider.NewMockProvider(logger)
		logger.Info().
			Str("backend", "mock").
			Msg("genesys provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported genesys provider backend %q", cfg.Provider)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
