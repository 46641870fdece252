package lending

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	logMsgOperation       = "lending operation: "
	logMsgRejected        = "lending operation rejected: "
	logMsgPersistFailed   = "lending operation rolled back, saving failed: "
	logMsgOperationFailed = "lending operation failed: "
	logMsgSaveRetried     = "saving the library state was retried"

	logAttrOperation     = "operation"
	logAttrOperationID   = "operation_id"
	logAttrBorrowerID    = "borrower_id"
	logAttrBookID        = "book_id"
	logAttrDurationMS    = "duration_ms"
	logAttrError         = "error"
	logAttrFailureKind   = "failure_kind"
	logAttrAttempts      = "attempts"
	logAttrFound         = "found"
	logAttrBookCount     = "book_count"
	logAttrBorrowerCount = "borrower_count"
	logAttrDueDate       = "due_date"
	logAttrDaysLate      = "days_late"
	logAttrPenalty       = "penalty"

	metricOperationDuration = "lending_operation_duration_seconds"
	metricOperations        = "lending_operations_total"
	metricOperationErrors   = "lending_operation_errors_total"
	metricRollbacks         = "lending_rollbacks_total"
	metricSaveRetries       = "lending_save_retries_total"
	metricBooksAvailable    = "lending_books_available"

	spanNamePrefix      = "lending."
	spanAttrOperation   = "operation"
	spanAttrOperationID = "operation_id"
	spanAttrBorrowerID  = "borrower_id"
	spanAttrBookID      = "book_id"
	spanAttrFailureKind = "failure_kind"
	spanAttrDurationMS  = "duration_ms"
	spanAttrAttempts    = "save_attempts"

	labelOperation   = "operation"
	labelStatus      = "status"
	labelFailureKind = "failure_kind"

	statusSuccess = "success"
	statusError   = "error"

	failureKindStore = "store_error"
)

// operation observes one Engine operation from start to finish.
// It writes the log records, metrics and the tracing span of the operation.
type operation struct {
	e          *Engine
	ctx        context.Context
	name       string
	id         string
	borrowerID BorrowerID
	bookID     BookID
	start      time.Time
	span       SpanContext
	attempts   int
}

func (e *Engine) startOperation(
	ctx context.Context,
	name string,
	borrowerID BorrowerID,
	bookID BookID,
) (context.Context, *operation) {

	op := &operation{
		e:          e,
		name:       name,
		id:         uuid.NewString(),
		borrowerID: borrowerID,
		bookID:     bookID,
		start:      time.Now(),
	}

	if e.tracingCollector != nil {
		ctx, op.span = e.tracingCollector.StartSpan(ctx, spanNamePrefix+name, op.spanAttributes())
	}

	op.ctx = ctx

	return ctx, op
}

// complete finishes an operation that did not change the state.
func (op *operation) complete(args ...any) {
	duration := time.Since(op.start)

	op.e.logDebug(op.ctx, logMsgOperation+op.name, op.logArgs(duration, args...)...)
	op.recordOutcome(duration, statusSuccess, "")
	op.finishSpan(duration, statusSuccess, nil)
}

// succeed finishes a mutation that was persisted.
func (op *operation) succeed(args ...any) {
	duration := time.Since(op.start)

	op.e.logInfo(op.ctx, logMsgOperation+op.name, op.logArgs(duration, args...)...)
	op.recordOutcome(duration, statusSuccess, "")
	op.e.recordValue(op.ctx, metricBooksAvailable, float64(op.e.countAvailableBooks()), nil)
	op.finishSpan(duration, statusSuccess, nil)
}

// fail finishes an operation with a domain failure or a rolled back mutation and returns the failure.
func (op *operation) fail(failure *Failure) *Failure {
	duration := time.Since(op.start)
	kind := failure.Kind.String()
	args := op.logArgs(duration, logAttrFailureKind, kind)

	if failure.Kind == KindPersistenceFailure {
		op.e.logError(op.ctx, logMsgPersistFailed+op.name, failure.Cause, args...)
		op.e.incrementCounter(op.ctx, metricRollbacks, map[string]string{labelOperation: op.name})
	} else {
		op.e.logInfo(op.ctx, logMsgRejected+op.name, append(args, logAttrError, failure.Message)...)
	}

	op.recordOutcome(duration, statusError, kind)
	op.finishSpan(duration, statusError, map[string]string{spanAttrFailureKind: kind})

	return failure
}

// abort finishes an operation that failed without a domain failure, e.g. loading the state.
func (op *operation) abort(err error) {
	duration := time.Since(op.start)

	op.e.logError(op.ctx, logMsgOperationFailed+op.name, err, op.logArgs(duration)...)
	op.recordOutcome(duration, statusError, failureKindStore)
	op.finishSpan(duration, statusError, map[string]string{spanAttrFailureKind: failureKindStore})
}

// retried records that saving needed more than one attempt.
func (op *operation) retried(attempts int, err error) {
	op.attempts = attempts

	args := op.logArgs(time.Since(op.start), logAttrAttempts, attempts)
	if err != nil && !errors.Is(err, context.Canceled) {
		args = append(args, logAttrError, err.Error())
	}

	op.e.logWarn(op.ctx, logMsgSaveRetried, args...)
	for range attempts - 1 {
		op.e.incrementCounter(op.ctx, metricSaveRetries, map[string]string{labelOperation: op.name})
	}
}

func (op *operation) logArgs(duration time.Duration, args ...any) []any {
	allArgs := []any{
		logAttrOperation, op.name,
		logAttrOperationID, op.id,
		logAttrDurationMS, toMilliseconds(duration),
	}

	if op.borrowerID != 0 {
		allArgs = append(allArgs, logAttrBorrowerID, op.borrowerID)
	}

	if op.bookID != 0 {
		allArgs = append(allArgs, logAttrBookID, op.bookID)
	}

	return append(allArgs, args...)
}

func (op *operation) spanAttributes() map[string]string {
	attrs := map[string]string{
		spanAttrOperation:   op.name,
		spanAttrOperationID: op.id,
	}

	if op.borrowerID != 0 {
		attrs[spanAttrBorrowerID] = strconv.Itoa(op.borrowerID)
	}

	if op.bookID != 0 {
		attrs[spanAttrBookID] = strconv.Itoa(op.bookID)
	}

	return attrs
}

func (op *operation) recordOutcome(duration time.Duration, status string, failureKind string) {
	labels := map[string]string{labelOperation: op.name, labelStatus: status}

	op.e.recordDuration(op.ctx, metricOperationDuration, duration, labels)
	op.e.incrementCounter(op.ctx, metricOperations, labels)

	if status == statusError {
		op.e.incrementCounter(op.ctx, metricOperationErrors, map[string]string{
			labelOperation:   op.name,
			labelFailureKind: failureKind,
		})
	}
}

func (op *operation) finishSpan(duration time.Duration, status string, attrs map[string]string) {
	if op.e.tracingCollector == nil || op.span == nil {
		return
	}

	op.span.SetStatus(status)
	op.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

	if op.attempts > 1 {
		op.span.AddAttribute(spanAttrAttempts, strconv.Itoa(op.attempts))
	}

	op.e.tracingCollector.FinishSpan(op.span, status, attrs)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.DebugContext(ctx, msg, args...)
	case e.logger != nil:
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logInfo(ctx context.Context, msg string, args ...any) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.InfoContext(ctx, msg, args...)
	case e.logger != nil:
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.WarnContext(ctx, msg, args...)
	case e.logger != nil:
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := args
	if err != nil {
		allArgs = append([]any{logAttrError, err.Error()}, args...)
	}

	switch {
	case e.contextualLogger != nil:
		e.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	case e.logger != nil:
		e.logger.Error(msg, allArgs...)
	}
}

func (e *Engine) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	// Use context-aware method if available
	if contextualCollector, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	e.metricsCollector.RecordDuration(metric, duration, labels)
}

func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	e.metricsCollector.IncrementCounter(metric, labels)
}

func (e *Engine) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := e.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
		return
	}

	e.metricsCollector.RecordValue(metric, value, labels)
}
