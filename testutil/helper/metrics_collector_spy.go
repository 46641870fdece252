package helper

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// MetricsCollectorSpy is a lending.ContextualMetricsCollector that captures metrics calls for testing.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	contextualCalls int
	mu              sync.Mutex
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		durationRecords: make([]SpyDurationRecord, 0),
		counterRecords:  make([]SpyCounterRecord, 0),
		valueRecords:    make([]SpyValueRecord, 0),
	}
}

// RecordDuration implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{Metric: metric, Duration: duration, Labels: maps.Clone(labels)})
}

// IncrementCounter implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{Metric: metric, Labels: maps.Clone(labels)})
}

// RecordValue implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{Metric: metric, Value: value, Labels: maps.Clone(labels)})
}

// RecordDurationContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.countContextualCall()
	s.RecordDuration(metric, duration, labels)
}

// IncrementCounterContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.countContextualCall()
	s.IncrementCounter(metric, labels)
}

// RecordValueContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.countContextualCall()
	s.RecordValue(metric, value, labels)
}

func (s *MetricsCollectorSpy) countContextualCall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contextualCalls++
}

// GetContextualCallCount returns how many calls went through the context-aware methods.
func (s *MetricsCollectorSpy) GetContextualCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.contextualCalls
}

// GetValueRecords returns a copy of all captured value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyValueRecord, len(s.valueRecords))
	copy(records, s.valueRecords)

	return records
}

// Reset clears all captured metric records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = s.durationRecords[:0]
	s.counterRecords = s.counterRecords[:0]
	s.valueRecords = s.valueRecords[:0]
	s.contextualCalls = 0
}

// MetricRecordMatcher provides a fluent interface for checking metric records.
// It matches if any record of the metric satisfies all conditions of the chain.
type MetricRecordMatcher struct {
	candidates []map[string]string
}

// HasDurationRecordForMetric starts a fluent chain to check a duration record.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &MetricRecordMatcher{}
	for _, record := range s.durationRecords {
		if record.Metric == metric {
			m.candidates = append(m.candidates, record.Labels)
		}
	}

	return m
}

// HasCounterRecordForMetric starts a fluent chain to check a counter record.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &MetricRecordMatcher{}
	for _, record := range s.counterRecords {
		if record.Metric == metric {
			m.candidates = append(m.candidates, record.Labels)
		}
	}

	return m
}

// HasValueRecordForMetric starts a fluent chain to check a value record.
func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &MetricRecordMatcher{}
	for _, record := range s.valueRecords {
		if record.Metric == metric {
			m.candidates = append(m.candidates, record.Labels)
		}
	}

	return m
}

// WithOperation checks the operation label.
func (m *MetricRecordMatcher) WithOperation(operation string) *MetricRecordMatcher {
	return m.WithLabel("operation", operation)
}

// WithStatus checks the status label.
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

// WithFailureKind checks the failure_kind label.
func (m *MetricRecordMatcher) WithFailureKind(kind string) *MetricRecordMatcher {
	return m.WithLabel("failure_kind", kind)
}

// WithLabel checks if the record has the specified label with the given value.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	remaining := m.candidates[:0:0]
	for _, labels := range m.candidates {
		if labels[key] == value {
			remaining = append(remaining, labels)
		}
	}

	m.candidates = remaining

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *MetricRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}

// CountCounterRecordsForMetric counts how many counter records exist for a specific metric.
func (s *MetricsCollectorSpy) CountCounterRecordsForMetric(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.counterRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

// CountDurationRecordsForMetric counts how many duration records exist for a specific metric.
func (s *MetricsCollectorSpy) CountDurationRecordsForMetric(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.durationRecords {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

var _ lending.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
