package oteladapters_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

func Test_NewSlogBridgeLogger_Construction(t *testing.T) {
	logger := oteladapters.NewSlogBridgeLogger("test")

	assert.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.InfoContext(context.Background(), "book added", "book_id", 1) })
}

func Test_SlogBridgeLogger_AllLevels(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := oteladapters.NewSlogBridgeLoggerWithHandler(handler)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "debug message", "operation", "load")
	logger.InfoContext(ctx, "info message", "operation", "add_book")
	logger.WarnContext(ctx, "warn message", "attempts", 2)
	logger.ErrorContext(ctx, "error message", "error", "disk full")

	// assert
	output := buf.String()
	assert.Contains(t, output, `"level":"DEBUG","msg":"debug message","operation":"load"`)
	assert.Contains(t, output, `"level":"INFO","msg":"info message","operation":"add_book"`)
	assert.Contains(t, output, `"level":"WARN","msg":"warn message","attempts":2`)
	assert.Contains(t, output, `"level":"ERROR","msg":"error message","error":"disk full"`)
}

// recordingProcessor keeps the body of every record emitted through an SDK LoggerProvider.
type recordingProcessor struct {
	bodies []string
}

func (p *recordingProcessor) OnEmit(_ context.Context, record *sdklog.Record) error {
	p.bodies = append(p.bodies, record.Body().AsString())
	return nil
}

func (p *recordingProcessor) Shutdown(context.Context) error   { return nil }
func (p *recordingProcessor) ForceFlush(context.Context) error { return nil }

func Test_TeeSlogBridgeLogger_WritesToProviderAndLocalHandler(t *testing.T) {
	// arrange
	var buf bytes.Buffer
	processor := &recordingProcessor{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	local := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := oteladapters.NewTeeSlogBridgeLogger("test", provider, local)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "loaded library")
	logger.InfoContext(ctx, "book added", "book_id", 1)

	// assert
	assert.Equal(t, []string{"loaded library", "book added"}, processor.bodies)
	assert.NotContains(t, buf.String(), "loaded library", "the local handler keeps its own level")
	assert.Contains(t, buf.String(), `msg="book added" book_id=1`)
}

// recordingLogger keeps every emitted record.
type recordingLogger struct {
	noop.Logger
	records []log.Record
}

func (r *recordingLogger) Emit(_ context.Context, record log.Record) {
	r.records = append(r.records, record)
}

func attributesOf(record log.Record) map[string]log.Value {
	attrs := make(map[string]log.Value)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})

	return attrs
}

func Test_OTelLogger_EmitsTypedRecords(t *testing.T) {
	// arrange
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)

	// act
	logger.InfoContext(
		context.Background(),
		"lending operation: borrow_book",
		"operation", "borrow_book",
		"book_id", 3,
		"duration_ms", 0.25,
		"found", true,
		"revision", int64(7),
		"dangling",
	)

	// assert
	require.Len(t, recorder.records, 1)
	record := recorder.records[0]
	assert.Equal(t, log.SeverityInfo, record.Severity())
	assert.Equal(t, "INFO", record.SeverityText())
	assert.Equal(t, "lending operation: borrow_book", record.Body().AsString())
	assert.False(t, record.Timestamp().IsZero())

	attrs := attributesOf(record)
	assert.Len(t, attrs, 5)
	assert.Equal(t, "borrow_book", attrs["operation"].AsString())
	assert.Equal(t, int64(3), attrs["book_id"].AsInt64())
	assert.InDelta(t, 0.25, attrs["duration_ms"].AsFloat64(), 0.0001)
	assert.True(t, attrs["found"].AsBool())
	assert.Equal(t, int64(7), attrs["revision"].AsInt64())
}

func Test_OTelLogger_Severities(t *testing.T) {
	// arrange
	recorder := &recordingLogger{}
	logger := oteladapters.NewOTelLogger(recorder)
	ctx := context.Background()

	// act
	logger.DebugContext(ctx, "d")
	logger.WarnContext(ctx, "w")
	logger.ErrorContext(ctx, "e", "error", assert.AnError)

	// assert
	require.Len(t, recorder.records, 3)
	assert.Equal(t, "DEBUG", recorder.records[0].SeverityText())
	assert.Equal(t, log.SeverityWarn, recorder.records[1].Severity())
	assert.Equal(t, log.SeverityError, recorder.records[2].Severity())
	assert.Equal(t, assert.AnError.Error(), attributesOf(recorder.records[2])["error"].AsString())
}
