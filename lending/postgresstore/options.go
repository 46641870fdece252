package postgresstore

import (
	"errors"
	"regexp"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Errors returned by constructors, options and EnsureTable.
var (
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrEmptyTableName        = errors.New("table name must not be empty")
	ErrInvalidTableName      = errors.New("table name must be a plain SQL identifier")
	ErrEmptyLibraryName      = errors.New("library name must not be empty")
	ErrCreatingTableFailed   = errors.New("creating snapshots table failed")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithTableName sets the snapshots table. The name is used verbatim in DDL, so only plain identifiers are accepted.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		if !identifierPattern.MatchString(tableName) {
			return ErrInvalidTableName
		}

		s.tableName = tableName

		return nil
	}
}

// WithLibraryName selects the row this Store reads and writes, so several libraries can share one table.
func WithLibraryName(libraryName string) Option {
	return func(s *Store) error {
		if libraryName == "" {
			return ErrEmptyLibraryName
		}

		s.libraryName = libraryName

		return nil
	}
}

// WithLogger sets the logger for the Store.
//
// Debug level: SQL statements with execution timing
// Info level: saves, loads and concurrency conflicts
// Error level: failed statements.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			return lending.ErrNilLogger
		}

		s.logger = logger

		return nil
	}
}
