package config_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/library-lending-go/internal/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func Test_Parse_Defaults(t *testing.T) {
	// act
	cfg, rest, err := config.Parse([]string{"books"}, envOf(nil), io.Discard)

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"books"}, rest)
	assert.Equal(t, config.StoreFile, cfg.Store)
	assert.Equal(t, "library_data.json", cfg.DataFile)
	assert.Equal(t, config.AdapterPGXPool, cfg.PostgresAdapter)
	assert.Equal(t, lending.DefaultPenaltyPerDay, cfg.PenaltyPerDay)
	assert.Equal(t, 14, cfg.LoanDays)
	assert.Equal(t, lending.DefaultLoanPeriod, cfg.LoanPeriod())
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.False(t, cfg.OTel)
	assert.Empty(t, cfg.OTLPEndpoint)
}

func Test_Parse_EnvironmentProvidesDefaults(t *testing.T) {
	// arrange
	env := envOf(map[string]string{
		config.EnvStore:           "Postgres",
		config.EnvPostgresAdapter: "sqlx.db",
		config.EnvPenaltyPerDay:   "3",
		config.EnvLoanDays:        "7",
		config.EnvLogLevel:        "debug",
		config.EnvOTel:            "true",
		config.EnvOTLPEndpoint:    "collector:4317",
	})

	// act
	cfg, _, err := config.Parse(nil, env, io.Discard)

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.StorePostgres, cfg.Store)
	assert.Equal(t, config.AdapterSQLX, cfg.PostgresAdapter)
	assert.Equal(t, 3, cfg.PenaltyPerDay)
	assert.Equal(t, 7*24*time.Hour, cfg.LoanPeriod())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.OTel)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
}

func Test_Parse_FlagsOverrideEnvironment(t *testing.T) {
	// arrange
	env := envOf(map[string]string{config.EnvStore: "postgres", config.EnvRedisAddr: "cache:6379"})

	// act
	cfg, rest, err := config.Parse([]string{"-store", "redis", "-redis-key", "branch:snapshot", "borrow", "1", "2"}, env, io.Discard)

	// assert
	require.NoError(t, err)
	assert.Equal(t, config.StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6379", cfg.RedisAddr)
	assert.Equal(t, "branch:snapshot", cfg.RedisKey)
	assert.Equal(t, []string{"borrow", "1", "2"}, rest)
}

func Test_Parse_RejectsInvalidSettings(t *testing.T) {
	testCases := []struct {
		name        string
		args        []string
		env         map[string]string
		expectedErr error
	}{
		{name: "unknown store", args: []string{"-store", "s3"}, expectedErr: config.ErrUnknownStore},
		{name: "unknown adapter", args: []string{"-postgres-adapter", "gorm"}, expectedErr: config.ErrUnknownPostgresAdapter},
		{name: "unknown log level", args: []string{"-log-level", "loud"}, expectedErr: config.ErrUnknownLogLevel},
		{name: "negative penalty", args: []string{"-penalty-per-day", "-1"}, expectedErr: config.ErrInvalidPenaltyPerDay},
		{name: "zero loan days", args: []string{"-loan-days", "0"}, expectedErr: config.ErrInvalidLoanDays},
		{name: "non-numeric env", env: map[string]string{config.EnvLoanDays: "two weeks"}, expectedErr: config.ErrInvalidEnvValue},
		{name: "non-boolean env", env: map[string]string{config.EnvOTel: "maybe"}, expectedErr: config.ErrInvalidEnvValue},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := config.Parse(tc.args, envOf(tc.env), io.Discard)

			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func Test_ParseLogLevel(t *testing.T) {
	level, err := config.ParseLogLevel("WARNING")

	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

type logRecorder struct {
	bodies []string
}

func (r *logRecorder) OnEmit(_ context.Context, record *sdklog.Record) error {
	r.bodies = append(r.bodies, record.Body().AsString())
	return nil
}

func (r *logRecorder) Shutdown(context.Context) error   { return nil }
func (r *logRecorder) ForceFlush(context.Context) error { return nil }

func Test_NewObservabilityProviders_RegistersGlobalProviders(t *testing.T) {
	// arrange
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	logs := &logRecorder{}

	// act
	providers, err := config.NewObservabilityProviders(
		context.Background(),
		"test",
		config.Exporters{
			SpanProcessors: []trace.SpanProcessor{trace.NewSimpleSpanProcessor(exporter)},
			MetricReaders:  []sdkmetric.Reader{reader},
			LogProcessors:  []sdklog.Processor{logs},
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = providers.Shutdown() })

	_, span := otel.Tracer("config-test").Start(context.Background(), "lookup")
	span.End()

	var record otellog.Record
	record.SetBody(otellog.StringValue("book added"))
	global.GetLoggerProvider().Logger("config-test").Emit(context.Background(), record)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "lookup", spans[0].Name)
	serviceName, found := spans[0].Resource.Set().Value(attribute.Key("service.name"))
	require.True(t, found)
	assert.Equal(t, config.ServiceName, serviceName.AsString())
	assert.Equal(t, []string{"book added"}, logs.bodies)
}

func Test_NewOTLPExporters_CreatesOneExporterPerSignal(t *testing.T) {
	// arrange
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// act
	exporters, err := config.NewOTLPExporters(ctx, "localhost:4317")

	// assert
	require.NoError(t, err)
	assert.Len(t, exporters.SpanProcessors, 1)
	assert.Len(t, exporters.MetricReaders, 1)
	assert.Len(t, exporters.LogProcessors, 1)

	// nothing was recorded, so shutting down does not need the collector
	assert.NoError(t, exporters.SpanProcessors[0].Shutdown(ctx))
	assert.NoError(t, exporters.LogProcessors[0].Shutdown(ctx))
	_ = exporters.MetricReaders[0].Shutdown(ctx)
}
