// Package oteladapters provides OpenTelemetry implementations of the lending observability interfaces,
// so an Engine can be wired to an OpenTelemetry setup without writing adapters.
package oteladapters

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// SlogBridgeLogger implements lending.ContextualLogger on top of log/slog.
// Created with NewSlogBridgeLogger, records go through the OpenTelemetry slog bridge
// and carry the trace and span IDs found in the context.
type SlogBridgeLogger struct {
	logger *slog.Logger
}

// NewSlogBridgeLogger creates a logger that emits to the global OpenTelemetry LoggerProvider.
func NewSlogBridgeLogger(name string) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: otelslog.NewLogger(name)}
}

// NewTeeSlogBridgeLogger creates a logger that emits to the given OpenTelemetry LoggerProvider
// and writes every record to local as well, so enabling OpenTelemetry does not silence the local log output.
func NewTeeSlogBridgeLogger(name string, provider log.LoggerProvider, local slog.Handler) *SlogBridgeLogger {
	bridge := otelslog.NewHandler(name, otelslog.WithLoggerProvider(provider))

	return &SlogBridgeLogger{logger: slog.New(teeHandler{bridge, local})}
}

// NewSlogBridgeLoggerWithHandler creates a logger that writes to the given handler as-is, without trace correlation.
func NewSlogBridgeLoggerWithHandler(handler slog.Handler) *SlogBridgeLogger {
	return &SlogBridgeLogger{logger: slog.New(handler)}
}

// DebugContext logs a debug message with context.
func (l *SlogBridgeLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.logger.DebugContext(ctx, msg, args...)
}

// InfoContext logs an info message with context.
func (l *SlogBridgeLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.logger.InfoContext(ctx, msg, args...)
}

// WarnContext logs a warning message with context.
func (l *SlogBridgeLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.logger.WarnContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context.
func (l *SlogBridgeLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.logger.ErrorContext(ctx, msg, args...)
}

var _ lending.ContextualLogger = (*SlogBridgeLogger)(nil)

// OTelLogger implements lending.ContextualLogger with the OpenTelemetry logs API directly.
type OTelLogger struct {
	logger log.Logger
}

// NewOTelLogger wraps an OpenTelemetry log.Logger.
func NewOTelLogger(logger log.Logger) *OTelLogger {
	return &OTelLogger{logger: logger}
}

// DebugContext emits a debug record.
func (l *OTelLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityDebug, msg, args...)
}

// InfoContext emits an info record.
func (l *OTelLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityInfo, msg, args...)
}

// WarnContext emits a warning record.
func (l *OTelLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityWarn, msg, args...)
}

// ErrorContext emits an error record.
func (l *OTelLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, log.SeverityError, msg, args...)
}

func (l *OTelLogger) emit(ctx context.Context, severity log.Severity, msg string, args ...any) {
	record := log.Record{}
	record.SetTimestamp(time.Now())
	record.SetSeverity(severity)
	record.SetSeverityText(severityText(severity))
	record.SetBody(log.StringValue(msg))

	// args come in slog-style key/value pairs; a dangling key is dropped
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}

		record.AddAttributes(keyValue(key, args[i+1]))
	}

	l.logger.Emit(ctx, record)
}

func keyValue(key string, value any) log.KeyValue {
	switch v := value.(type) {
	case string:
		return log.String(key, v)
	case int:
		return log.Int(key, v)
	case int64:
		return log.Int64(key, v)
	case float64:
		return log.Float64(key, v)
	case bool:
		return log.Bool(key, v)
	default:
		return log.String(key, slog.AnyValue(v).String())
	}
}

func severityText(severity log.Severity) string {
	switch severity {
	case log.SeverityDebug:
		return "DEBUG"
	case log.SeverityInfo:
		return "INFO"
	case log.SeverityWarn:
		return "WARN"
	case log.SeverityError:
		return "ERROR"
	default:
		return ""
	}
}

var _ lending.ContextualLogger = (*OTelLogger)(nil)
