package helper

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// SpySpanContext implements lending.SpanContext for testing.
type SpySpanContext struct {
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements lending.SpanContext.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

// AddAttribute implements lending.SpanContext.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}

	c.attributes[key] = value
}

// GetStatus returns the status set on the span.
func (c *SpySpanContext) GetStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// GetAttributes returns a copy of the attributes added to the span.
func (c *SpySpanContext) GetAttributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return maps.Clone(c.attributes)
}

// TracingCollectorSpy is a lending.TracingCollector that captures tracing calls for testing.
type TracingCollectorSpy struct {
	spanRecords []SpySpanRecord
	mu          sync.Mutex
}

// SpySpanRecord represents a recorded span.
type SpySpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
	SpanContext     *SpySpanContext
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{spanRecords: make([]SpySpanRecord, 0)}
}

// StartSpan implements lending.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, lending.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spanCtx := &SpySpanContext{attributes: make(map[string]string)}

	s.spanRecords = append(s.spanRecords, SpySpanRecord{
		Name:            name,
		StartAttributes: maps.Clone(attrs),
		SpanContext:     spanCtx,
	})

	return ctx, spanCtx
}

// FinishSpan implements lending.TracingCollector.
func (s *TracingCollectorSpy) FinishSpan(spanCtx lending.SpanContext, status string, attrs map[string]string) {
	spyCtx, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.spanRecords {
		if s.spanRecords[i].SpanContext == spyCtx {
			s.spanRecords[i].Status = status
			s.spanRecords[i].EndAttributes = maps.Clone(attrs)
			s.spanRecords[i].Finished = true

			break
		}
	}
}

// GetSpanRecords returns a copy of all captured span records.
func (s *TracingCollectorSpy) GetSpanRecords() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpySpanRecord, len(s.spanRecords))
	copy(records, s.spanRecords)

	return records
}

// Reset clears all captured span records.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spanRecords = s.spanRecords[:0]
}

// SpanRecordMatcher provides a fluent interface for checking span records.
type SpanRecordMatcher struct {
	record *SpySpanRecord
	found  bool
}

// HasSpanRecordForName starts a fluent chain to check the last span record with the given name.
func (s *TracingCollectorSpy) HasSpanRecordForName(name string) *SpanRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.spanRecords) - 1; i >= 0; i-- {
		if s.spanRecords[i].Name == name {
			record := s.spanRecords[i]
			return &SpanRecordMatcher{record: &record, found: true}
		}
	}

	return &SpanRecordMatcher{found: false}
}

// WithStatus checks the status the span was finished with.
func (m *SpanRecordMatcher) WithStatus(status string) *SpanRecordMatcher {
	if m.found && (!m.record.Finished || m.record.Status != status) {
		m.found = false
	}

	return m
}

// WithStartAttribute checks an attribute the span was started with.
func (m *SpanRecordMatcher) WithStartAttribute(key, value string) *SpanRecordMatcher {
	if m.found && m.record.StartAttributes[key] != value {
		m.found = false
	}

	return m
}

// WithEndAttribute checks an attribute the span was finished with.
func (m *SpanRecordMatcher) WithEndAttribute(key, value string) *SpanRecordMatcher {
	if m.found && m.record.EndAttributes[key] != value {
		m.found = false
	}

	return m
}

// WithSpanAttribute checks if an attribute was added to the running span.
func (m *SpanRecordMatcher) WithSpanAttribute(key string) *SpanRecordMatcher {
	if !m.found {
		return m
	}

	if _, exists := m.record.SpanContext.GetAttributes()[key]; !exists {
		m.found = false
	}

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *SpanRecordMatcher) Assert() bool {
	return m.found
}

// CountSpanRecordsForName counts how many span records exist for a specific name.
func (s *TracingCollectorSpy) CountSpanRecordsForName(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.spanRecords {
		if record.Name == name {
			count++
		}
	}

	return count
}

var _ lending.TracingCollector = (*TracingCollectorSpy)(nil)
