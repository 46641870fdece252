package lending

import (
	"errors"
	"fmt"
)

// Domain rejections and the persistence failure of an Engine operation.
// A returned *Failure matches exactly one of these with errors.Is.
var (
	ErrBorrowerNotFound   = errors.New("borrower not found")
	ErrBookNotFound       = errors.New("book not found")
	ErrAlreadyBorrowed    = errors.New("book is already borrowed")
	ErrDuplicateLoan      = errors.New("borrower already holds this book")
	ErrInvalidReference   = errors.New("invalid borrower or book id")
	ErrNoSuchLoan         = errors.New("borrower did not borrow this book")
	ErrPersistenceFailure = errors.New("persisting library state failed")
)

// Errors returned by Store implementations.
var (
	// ErrNilStore is returned when NewEngine is called without a Store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrSavingSnapshotFailed is returned when a Store could not write a snapshot.
	ErrSavingSnapshotFailed = errors.New("saving snapshot failed")

	// ErrLoadingSnapshotFailed is returned when a Store could not read a snapshot.
	ErrLoadingSnapshotFailed = errors.New("loading snapshot failed")

	// ErrStoreUnavailable marks store errors that are safe to retry, e.g. lost connections.
	ErrStoreUnavailable = errors.New("store temporarily unavailable")

	// ErrConcurrencyConflict is returned when another process saved the library state in between.
	ErrConcurrencyConflict = errors.New("concurrency conflict, library state was changed by someone else")

	// ErrInvalidSnapshotJSON is returned when snapshot JSON data is malformed.
	ErrInvalidSnapshotJSON = errors.New("snapshot json is not valid")

	// ErrInvalidSnapshot is returned when a snapshot violates the lending invariants.
	ErrInvalidSnapshot = errors.New("snapshot violates lending invariants")
)

// Errors returned by options.
var (
	ErrInvalidPenaltyPerDay = errors.New("penalty per day must not be negative")
	ErrInvalidLoanPeriod    = errors.New("loan period must be positive")
	ErrNilClock             = errors.New("clock must not be nil")
	ErrNilLogger            = errors.New("logger must not be nil")
	ErrNilMetricsCollector  = errors.New("metrics collector must not be nil")
	ErrNilTracingCollector  = errors.New("tracing collector must not be nil")
)

// FailureKind enumerates why an Engine operation failed.
type FailureKind int

const (
	KindBorrowerNotFound FailureKind = iota + 1
	KindBookNotFound
	KindAlreadyBorrowed
	KindDuplicateLoan
	KindInvalidReference
	KindNoSuchLoan
	KindPersistenceFailure
)

// String provides a string representation of FailureKind for logging and metrics labels.
func (k FailureKind) String() string {
	switch k {
	case KindBorrowerNotFound:
		return "borrower_not_found"
	case KindBookNotFound:
		return "book_not_found"
	case KindAlreadyBorrowed:
		return "already_borrowed"
	case KindDuplicateLoan:
		return "duplicate_loan"
	case KindInvalidReference:
		return "invalid_reference"
	case KindNoSuchLoan:
		return "no_such_loan"
	case KindPersistenceFailure:
		return "persistence_failure"
	default:
		return "unknown"
	}
}

func (k FailureKind) sentinel() error {
	switch k {
	case KindBorrowerNotFound:
		return ErrBorrowerNotFound
	case KindBookNotFound:
		return ErrBookNotFound
	case KindAlreadyBorrowed:
		return ErrAlreadyBorrowed
	case KindDuplicateLoan:
		return ErrDuplicateLoan
	case KindInvalidReference:
		return ErrInvalidReference
	case KindNoSuchLoan:
		return ErrNoSuchLoan
	case KindPersistenceFailure:
		return ErrPersistenceFailure
	default:
		return nil
	}
}

// Failure is the error returned by Engine operations.
//
// It carries the kind of failure, the IDs involved and a message meant to be shown to a user verbatim.
// For KindPersistenceFailure, Cause holds the Store error.
type Failure struct {
	Kind       FailureKind
	Operation  string
	BorrowerID BorrowerID
	BookID     BookID
	Message    string
	Cause      error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Operation, f.Message, f.Cause)
	}

	return fmt.Sprintf("%s: %s", f.Operation, f.Message)
}

// Is matches the sentinel error of the failure's kind.
func (f *Failure) Is(target error) bool {
	return target != nil && target == f.Kind.sentinel()
}

// Unwrap exposes the Store error of a persistence failure.
func (f *Failure) Unwrap() error {
	return f.Cause
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}

	return nil, false
}
