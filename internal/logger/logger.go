package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02 15:04:05"

// Options describes the process identity stamped on every log line.
type Options struct {
	Env     string
	Level   string
	Service string
	Version string
}

// New builds the process logger. Development environments get a console
// writer; everything else emits JSON on stdout so log shippers can parse it.
// Supplying writers overrides the output, which tests rely on.
func New(opts Options, writers ...io.Writer) (*zerolog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer
	switch {
	case len(writers) > 0:
		output = io.MultiWriter(writers...)
	case isDevelopment(opts.Env):
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: consoleTimeFormat}
	default:
		output = os.Stdout
	}

	ctx := zerolog.New(output).With().Timestamp()
	if s := strings.TrimSpace(opts.Service); s != "" {
		ctx = ctx.Str("service", s)
	}
	if v := strings.TrimSpace(opts.Version); v != "" {
		ctx = ctx.Str("version", v)
	}
	logger := ctx.Logger().Level(lvl)
	return &logger, nil
}

// ParseLevel maps a textual level to zerolog, defaulting to info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(strings.ToLower(level))
}

func isDevelopment(env string) bool {
	return strings.EqualFold(env, "development") || strings.EqualFold(env, "dev")
}
