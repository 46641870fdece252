package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy.
// Switch on logToStdout to see the actual log output while debugging a test.
func NewLogHandlerSpy(logToStdout bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdout,
	}
}

// Handle implements slog.Handler interface.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)

	if s.logToStdout {
		_ = slog.NewJSONHandler(os.Stdout, nil).Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler interface.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler interface.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// GetRecordCount returns the number of captured log records.
func (s *LogHandlerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// GetRecords returns a copy of all captured log records.
func (s *LogHandlerSpy) GetRecords() []slog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]slog.Record, len(s.records))
	copy(records, s.records)

	return records
}

// Reset clears all captured log records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
}

// SpyLogRecordMatcher provides a fluent interface for checking log record attributes.
type SpyLogRecordMatcher struct {
	record *slog.Record
	found  bool
}

// HasDebugLogWithMessage starts a fluent chain to check a debug-level log record.
func (s *LogHandlerSpy) HasDebugLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.hasLogWithMessage(slog.LevelDebug, message)
}

// HasInfoLogWithMessage starts a fluent chain to check an info-level log record.
func (s *LogHandlerSpy) HasInfoLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.hasLogWithMessage(slog.LevelInfo, message)
}

// HasWarnLogWithMessage starts a fluent chain to check a warn-level log record.
func (s *LogHandlerSpy) HasWarnLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.hasLogWithMessage(slog.LevelWarn, message)
}

// HasErrorLogWithMessage starts a fluent chain to check an error-level log record.
func (s *LogHandlerSpy) HasErrorLogWithMessage(message string) *SpyLogRecordMatcher {
	return s.hasLogWithMessage(slog.LevelError, message)
}

func (s *LogHandlerSpy) hasLogWithMessage(level slog.Level, message string) *SpyLogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			return &SpyLogRecordMatcher{record: &record, found: true}
		}
	}

	return &SpyLogRecordMatcher{found: false}
}

// WithDurationMS checks if the log record has a non-negative duration_ms attribute.
func (m *SpyLogRecordMatcher) WithDurationMS() *SpyLogRecordMatcher {
	return m.withAttr("duration_ms", func(v slog.Value) bool {
		switch v.Kind() {
		case slog.KindFloat64:
			return v.Float64() >= 0
		case slog.KindInt64:
			return v.Int64() >= 0
		default:
			return false
		}
	})
}

// WithOperationID checks if the log record has a non-empty operation_id attribute.
func (m *SpyLogRecordMatcher) WithOperationID() *SpyLogRecordMatcher {
	return m.withAttr("operation_id", func(v slog.Value) bool {
		return v.Kind() == slog.KindString && v.String() != ""
	})
}

// WithIntAttr checks if the log record has an integer attribute with the given value.
func (m *SpyLogRecordMatcher) WithIntAttr(key string, want int) *SpyLogRecordMatcher {
	return m.withAttr(key, func(v slog.Value) bool {
		return v.Kind() == slog.KindInt64 && v.Int64() == int64(want)
	})
}

// WithStringAttr checks if the log record has a string attribute with the given value.
func (m *SpyLogRecordMatcher) WithStringAttr(key string, want string) *SpyLogRecordMatcher {
	return m.withAttr(key, func(v slog.Value) bool {
		return v.Kind() == slog.KindString && v.String() == want
	})
}

// WithAttr checks if the log record has an attribute with the given key.
func (m *SpyLogRecordMatcher) WithAttr(key string) *SpyLogRecordMatcher {
	return m.withAttr(key, func(slog.Value) bool { return true })
}

func (m *SpyLogRecordMatcher) withAttr(key string, match func(slog.Value) bool) *SpyLogRecordMatcher {
	if !m.found {
		return m
	}

	matched := false
	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key && match(attr.Value) {
			matched = true
			return false
		}

		return true
	})

	if !matched {
		m.found = false
	}

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *SpyLogRecordMatcher) Assert() bool {
	return m.found
}
