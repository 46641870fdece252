package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ServiceName identifies the librarian in telemetry.
const ServiceName = "librarian"

const (
	metricExportInterval = 5 * time.Second
	shutdownTimeout      = 5 * time.Second
)

// Exporters are the span processors, metric readers and log processors the providers deliver to.
type Exporters struct {
	SpanProcessors []trace.SpanProcessor
	MetricReaders  []metric.Reader
	LogProcessors  []sdklog.Processor
}

// NewOTLPExporters creates insecure OTLP gRPC exporters for traces, metrics and logs, all sending to endpoint.
// Connections are established lazily, so an unreachable collector only shows up when telemetry is exported.
func NewOTLPExporters(ctx context.Context, endpoint string) (Exporters, error) {
	traceExporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return Exporters{}, err
	}

	metricExporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return Exporters{}, errors.Join(err, traceExporter.Shutdown(ctx))
	}

	logExporter, err := otlploggrpc.New(
		ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return Exporters{}, errors.Join(err, traceExporter.Shutdown(ctx), metricExporter.Shutdown(ctx))
	}

	return Exporters{
		SpanProcessors: []trace.SpanProcessor{trace.NewBatchSpanProcessor(traceExporter)},
		MetricReaders: []metric.Reader{
			metric.NewPeriodicReader(metricExporter, metric.WithInterval(metricExportInterval)),
		},
		LogProcessors: []sdklog.Processor{sdklog.NewBatchProcessor(logExporter)},
	}, nil
}

// ObservabilityProviders holds the OpenTelemetry providers of a librarian run.
type ObservabilityProviders struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Resource       *resource.Resource
}

// NewObservabilityProviders creates tracer, meter and logger providers delivering to exporters
// and registers them globally.
//
// Without exporters, spans, measurements and log records are recorded and dropped.
func NewObservabilityProviders(
	ctx context.Context,
	version string,
	exporters Exporters,
) (*ObservabilityProviders, error) {

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, err
	}

	traceOptions := []trace.TracerProviderOption{trace.WithResource(res)}
	for _, processor := range exporters.SpanProcessors {
		traceOptions = append(traceOptions, trace.WithSpanProcessor(processor))
	}

	metricOptions := []metric.Option{metric.WithResource(res)}
	for _, reader := range exporters.MetricReaders {
		metricOptions = append(metricOptions, metric.WithReader(reader))
	}

	logOptions := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, processor := range exporters.LogProcessors {
		logOptions = append(logOptions, sdklog.WithProcessor(processor))
	}

	tracerProvider := trace.NewTracerProvider(traceOptions...)
	meterProvider := metric.NewMeterProvider(metricOptions...)
	loggerProvider := sdklog.NewLoggerProvider(logOptions...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	global.SetLoggerProvider(loggerProvider)

	return &ObservabilityProviders{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		LoggerProvider: loggerProvider,
		Resource:       res,
	}, nil
}

// Shutdown flushes and stops all providers.
func (p *ObservabilityProviders) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		p.TracerProvider.Shutdown(ctx),
		p.MeterProvider.Shutdown(ctx),
		p.LoggerProvider.Shutdown(ctx),
	)
}
