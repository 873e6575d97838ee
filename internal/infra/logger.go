package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing zerolog directly.
type Logger = zerolog.Logger

// NewLogger constructs the service logger. Development gets a console writer
// at debug level; everything else emits JSON at info, unless LOG_LEVEL says
// otherwise.
func NewLogger(appEnv string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(raw)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("env", appEnv).
		Logger()
}

// NopLogger returns a logger that discards everything. Used as the default
// when a component is constructed without one.
func NopLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// LoggerOrNop dereferences l, falling back to a discard logger.
func LoggerOrNop(l *Logger) *Logger {
	if l != nil {
		return l
	}
	return NopLogger()
}
