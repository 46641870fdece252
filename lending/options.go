package lending

import "time"

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithPenaltyPerDay sets the penalty charged per full overdue day.
func WithPenaltyPerDay(penalty int) Option {
	return func(e *Engine) error {
		if penalty < 0 {
			return ErrInvalidPenaltyPerDay
		}

		e.penaltyPerDay = penalty

		return nil
	}
}

// WithLoanPeriod sets the time between borrowing and the due date.
func WithLoanPeriod(period time.Duration) Option {
	return func(e *Engine) error {
		if period <= 0 {
			return ErrInvalidLoanPeriod
		}

		e.loanPeriod = period

		return nil
	}
}

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return ErrNilClock
		}

		e.now = now

		return nil
	}
}

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: loaded registries, save attempts
// Info level: completed operations with durations, domain rejections
// Warn level: retried saves
// Error level: persistence failures and the rollbacks they cause.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return ErrNilLogger
		}

		e.logger = logger

		return nil
	}
}

// WithContextualLogger sets a context-aware logger, which takes precedence over WithLogger.
// With an OpenTelemetry-backed logger, log records carry the trace and span IDs of the operation.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(e *Engine) error {
		if logger == nil {
			return ErrNilLogger
		}

		e.contextualLogger = logger

		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// It receives operation durations, operation and error counters, rollbacks, retries
// and the number of available books.
func WithMetrics(collector MetricsCollector) Option {
	return func(e *Engine) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		e.metricsCollector = collector

		return nil
	}
}

// WithTracing sets the tracing collector for the Engine.
// Every operation runs in a span named "lending.<operation>".
func WithTracing(collector TracingCollector) Option {
	return func(e *Engine) error {
		if collector == nil {
			return ErrNilTracingCollector
		}

		e.tracingCollector = collector

		return nil
	}
}

// WithSaveRetry configures how saves that fail with ErrStoreUnavailable are retried
// before the mutation is rolled back.
func WithSaveRetry(options ...RetryOption) Option {
	return func(e *Engine) error {
		for _, option := range options {
			if err := option(&e.retry); err != nil {
				return err
			}
		}

		return nil
	}
}
