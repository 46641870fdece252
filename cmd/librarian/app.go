package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/AntonStoeckl/library-lending-go/internal/config"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage error")

// app executes commands against one Engine and writes their results.
type app struct {
	engine *lending.Engine
	store  *openedStore
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// run parses the configuration, opens the store and executes the command given in args.
func run(
	ctx context.Context,
	args []string,
	getenv func(string) string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
) int {

	cfg, rest, err := config.Parse(args, getenv, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	if len(rest) == 0 {
		fmt.Fprintln(stderr, "missing command, run librarian -h for usage")
		return exitUsage
	}

	logger := config.NewLogger(stderr, cfg.LogLevel)

	engineOptions := []lending.Option{
		lending.WithPenaltyPerDay(cfg.PenaltyPerDay),
		lending.WithLoanPeriod(cfg.LoanPeriod()),
		lending.WithLogger(logger),
	}

	if cfg.OTel {
		providers, providersErr := setUpOTel(ctx, cfg)
		if providersErr != nil {
			fmt.Fprintln(stderr, "setting up OpenTelemetry failed:", providersErr)
			return exitFailure
		}
		defer func() {
			if shutdownErr := providers.Shutdown(); shutdownErr != nil {
				logger.Warn("shutting down OpenTelemetry failed", "error", shutdownErr.Error())
			}
		}()

		engineOptions = append(engineOptions, observabilityOptions(providers, logger.Handler())...)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailure
	}
	defer store.close()

	command, commandArgs := rest[0], rest[1:]

	// the table has to exist before the engine loads from it
	if command == "init-db" {
		return initDB(ctx, store, stdout, stderr)
	}

	engine, err := lending.NewEngine(ctx, store.store, engineOptions...)
	if err != nil {
		fmt.Fprintln(stderr, "loading the library failed:", err)
		return exitFailure
	}

	a := &app{engine: engine, store: store, in: stdin, out: stdout, errOut: stderr}

	err = a.execute(ctx, command, commandArgs)

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	default:
		return exitFailure
	}
}

// setUpOTel creates the OpenTelemetry providers, exporting over OTLP when an endpoint is configured.
func setUpOTel(ctx context.Context, cfg config.Config) (*config.ObservabilityProviders, error) {
	var exporters config.Exporters

	if cfg.OTLPEndpoint != "" {
		var err error
		if exporters, err = config.NewOTLPExporters(ctx, cfg.OTLPEndpoint); err != nil {
			return nil, err
		}
	}

	return config.NewObservabilityProviders(ctx, version, exporters)
}

// observabilityOptions keeps writing log records to local next to the OpenTelemetry logger.
func observabilityOptions(providers *config.ObservabilityProviders, local slog.Handler) []lending.Option {
	return []lending.Option{
		lending.WithContextualLogger(
			oteladapters.NewTeeSlogBridgeLogger(config.ServiceName, providers.LoggerProvider, local),
		),
		lending.WithMetrics(oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(config.ServiceName))),
		lending.WithTracing(oteladapters.NewTracingCollector(providers.TracerProvider.Tracer(config.ServiceName))),
	}
}

func initDB(ctx context.Context, store *openedStore, stdout, stderr io.Writer) int {
	if store.ensureTable == nil {
		fmt.Fprintln(stdout, "Nothing to initialize for this store.")
		return exitOK
	}

	if err := store.ensureTable(ctx); err != nil {
		fmt.Fprintln(stderr, "initializing the database failed:", err)
		return exitFailure
	}

	fmt.Fprintln(stdout, "Database initialized.")

	return exitOK
}

// report prints the outcome of an operation and returns the error for the exit code.
func (a *app) report(result lending.Messenger, err error) error {
	success, message := lending.Outcome(result, err)
	if success {
		fmt.Fprintln(a.out, message)
		return nil
	}

	fmt.Fprintln(a.errOut, message)

	return err
}
