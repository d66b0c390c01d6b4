package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	JSONLoggingFormat    = "json"
	ConsoleLoggingFormat = "console"

	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarn    = "warn"
	LogLevelWarning = "warning"
	LogLevelError   = "error"

	ContextKeyRequestID     contextKey = "requestID"
	ContextKeyCorrelationID contextKey = "correlationID"
	ContextKeyOwner         contextKey = "owner"
)

// Logger is the service-wide structured logger.
type Logger struct {
	zerolog.Logger
}

func New(level, format string) Logger {
	return NewWithWriter(level, format, os.Stdout)
}

func NewWithWriter(level, format string, w io.Writer) Logger {
	var logger zerolog.Logger

	if strings.EqualFold(format, JSONLoggingFormat) {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	logger = logger.Level(ParseLevel(level)).With().Timestamp().Logger()

	return Logger{Logger: logger}
}

// ParseLevel maps a configured level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn, LogLevelWarning:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the given component name.
func (l Logger) Component(name string) Logger {
	return Logger{Logger: l.Logger.With().Str("component", name).Logger()}
}

// WithContext returns a logger enriched with the request scoped ids found in ctx.
func (l Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger

	if correlationID, ok := ctx.Value(ContextKeyCorrelationID).(string); ok && correlationID != "" {
		logger = logger.With().Str("correlation_id", correlationID).Logger()
	}

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		logger = logger.With().Str("request_id", requestID).Logger()
	}

	if owner, ok := ctx.Value(ContextKeyOwner).(string); ok && owner != "" {
		logger = logger.With().Str("owner", owner).Logger()
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}

// WithOwner stores the account identifier a request acts on.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ContextKeyOwner, owner)
}

// WithRequestID stores the request id used to correlate log lines.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
