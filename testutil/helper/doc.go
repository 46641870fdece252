// Package helper provides test doubles and fixtures for testing the lending engine and its stores.
//
// It contains a controllable clock, an in-memory Store spy with failure injection,
// a slog handler that captures log records, and spies for the metrics and tracing interfaces.
package helper
