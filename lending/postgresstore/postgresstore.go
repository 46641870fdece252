package postgresstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresstore/internal/adapters"
)

const (
	// DefaultTableName is the snapshots table used when WithTableName is not given.
	DefaultTableName = "library_snapshots"

	// DefaultLibraryName is the row key used when WithLibraryName is not given.
	DefaultLibraryName = "default"
)

const (
	dialectPostgres = "postgres"

	colLibraryName = "library_name"
	colRevision    = "revision"
	colPayload     = "payload"
	colSavedAt     = "saved_at"

	castJsonb = "?::jsonb"
	sqlNow    = "NOW()"
	excluded  = "EXCLUDED."

	createTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	library_name text PRIMARY KEY,
	revision bigint NOT NULL,
	payload jsonb NOT NULL,
	saved_at timestamptz NOT NULL DEFAULT NOW()
)`
)

const (
	logMsgSQLExecuted      = "postgresstore: sql executed: "
	logMsgOperation        = "postgresstore: "
	logMsgSaved            = "library state saved"
	logMsgLoaded           = "library state loaded"
	logMsgNotFound         = "no library state found"
	logMsgTableEnsured     = "snapshots table ensured"
	logMsgConflict         = "concurrency conflict detected"
	logMsgDBQueryFailed    = "postgresstore: database query failed"
	logMsgDBExecFailed     = "postgresstore: database exec failed"
	logMsgCloseRowsFailed  = "postgresstore: failed to close database rows"
	logMsgBuildQueryFailed = "postgresstore: failed to build sql"

	logActionLoad   = "load"
	logActionSave   = "save"
	logActionCreate = "create table"

	logAttrQuery        = "query"
	logAttrError        = "error"
	logAttrDurationMS   = "duration_ms"
	logAttrLibrary      = "library"
	logAttrTable        = "table"
	logAttrRevision     = "revision"
	logAttrExpectedRev  = "expected_revision"
	logAttrPayloadBytes = "payload_bytes"
)

// Store is a lending.Store backed by a PostgreSQL table.
type Store struct {
	db          adapters.DBAdapter
	tableName   string
	libraryName string
	logger      lending.Logger

	mu       sync.Mutex
	revision int64
}

// NewStoreFromPGXPool creates a Store using a pgx pool.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a Store using a database/sql connection.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a Store using an sqlx connection.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{
		db:          db,
		tableName:   DefaultTableName,
		libraryName: DefaultLibraryName,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// TableName returns the snapshots table.
func (s *Store) TableName() string {
	return s.tableName
}

// LibraryName returns the key of the row this Store works on.
func (s *Store) LibraryName() string {
	return s.libraryName
}

// Revision returns the revision this Store last loaded or saved, 0 if none.
func (s *Store) Revision() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revision
}

// EnsureTable creates the snapshots table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	sqlQuery := fmt.Sprintf(createTableTemplate, s.tableName)

	start := time.Now()
	_, err := s.db.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(sqlQuery, logActionCreate, time.Since(start))

	if err != nil {
		s.logError(logMsgDBExecFailed, err, sqlQuery)
		return classify(errors.Join(ErrCreatingTableFailed, err))
	}

	s.logOperation(logMsgTableEnsured, logAttrTable, s.tableName)

	return nil
}

// Load implements lending.Store. It remembers the revision of the loaded row for the next Save.
func (s *Store) Load(ctx context.Context) (lending.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlQuery, err := s.buildSelectQuery()
	if err != nil {
		return lending.Snapshot{}, false, errors.Join(lending.ErrLoadingSnapshotFailed, err)
	}

	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(sqlQuery, logActionLoad, time.Since(start))

	if queryErr != nil {
		s.logError(logMsgDBQueryFailed, queryErr, sqlQuery)
		return lending.Snapshot{}, false, classify(errors.Join(lending.ErrLoadingSnapshotFailed, queryErr))
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return lending.Snapshot{}, false, classify(errors.Join(lending.ErrLoadingSnapshotFailed, rowsErr))
		}

		s.revision = 0
		s.logOperation(logMsgNotFound, logAttrLibrary, s.libraryName)

		return lending.Snapshot{}, false, nil
	}

	var revision int64
	var payload string

	if scanErr := rows.Scan(&revision, &payload); scanErr != nil {
		return lending.Snapshot{}, false, errors.Join(lending.ErrLoadingSnapshotFailed, scanErr)
	}

	snapshot, decodeErr := lending.UnmarshalSnapshot([]byte(payload))
	if decodeErr != nil {
		return lending.Snapshot{}, false, errors.Join(lending.ErrLoadingSnapshotFailed, decodeErr)
	}

	s.revision = revision
	s.logOperation(
		logMsgLoaded,
		logAttrLibrary, s.libraryName,
		logAttrRevision, revision,
		logAttrPayloadBytes, len(payload),
	)

	return snapshot, true, nil
}

// Save implements lending.Store.
//
// The row is inserted on first save and updated afterwards, both in one upsert statement whose update
// only applies while the stored revision equals the one this Store knows about.
func (s *Store) Save(ctx context.Context, snapshot lending.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := lending.MarshalSnapshot(snapshot)
	if err != nil {
		return errors.Join(lending.ErrSavingSnapshotFailed, err)
	}

	expected := s.revision
	next := expected + 1

	sqlQuery, err := s.buildUpsertQuery(payload, expected, next)
	if err != nil {
		return errors.Join(lending.ErrSavingSnapshotFailed, err)
	}

	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(sqlQuery, logActionSave, duration)

	if execErr != nil {
		s.logError(logMsgDBExecFailed, execErr, sqlQuery)
		return classify(errors.Join(lending.ErrSavingSnapshotFailed, execErr))
	}

	rowsAffected, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return errors.Join(lending.ErrSavingSnapshotFailed, rowsErr)
	}

	if rowsAffected == 0 {
		s.logOperation(logMsgConflict, logAttrLibrary, s.libraryName, logAttrExpectedRev, expected)
		return lending.ErrConcurrencyConflict
	}

	s.revision = next
	s.logOperation(
		logMsgSaved,
		logAttrLibrary, s.libraryName,
		logAttrRevision, next,
		logAttrPayloadBytes, len(payload),
		logAttrDurationMS, durationToMilliseconds(duration),
	)

	return nil
}

func (s *Store) buildSelectQuery() (string, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(colRevision, goqu.Cast(goqu.C(colPayload), "TEXT")).
		Where(goqu.Ex{colLibraryName: s.libraryName})

	sqlQuery, _, err := selectStmt.ToSQL()
	if err != nil {
		s.logError(logMsgBuildQueryFailed, err, "")
		return "", err
	}

	return sqlQuery, nil
}

func (s *Store) buildUpsertQuery(payload []byte, expected, next int64) (string, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(s.tableName).
		Rows(goqu.Record{
			colLibraryName: s.libraryName,
			colRevision:    next,
			colPayload:     goqu.L(castJsonb, string(payload)),
			colSavedAt:     goqu.L(sqlNow),
		}).
		OnConflict(
			goqu.DoUpdate(colLibraryName, goqu.Record{
				colRevision: goqu.L(excluded + colRevision),
				colPayload:  goqu.L(excluded + colPayload),
				colSavedAt:  goqu.L(excluded + colSavedAt),
			}).Where(goqu.I(s.tableName + "." + colRevision).Eq(expected)),
		)

	sqlQuery, _, err := insertStmt.ToSQL()
	if err != nil {
		s.logError(logMsgBuildQueryFailed, err, "")
		return "", err
	}

	return sqlQuery, nil
}

// classify joins errors that are worth retrying with lending.ErrStoreUnavailable.
//
// Only failures that happened before the statement reached the server qualify. A timeout or a broken
// connection while waiting for the result may follow a commit, and a retry would then run against
// a revision that no longer exists.
func classify(err error) error {
	if isTransient(err) {
		return errors.Join(lending.ErrStoreUnavailable, err)
	}

	return err
}

func isTransient(err error) bool {
	var connectErr *pgconn.ConnectError
	var opErr *net.OpError

	switch {
	case errors.Is(err, driver.ErrBadConn):
		return true
	case pgconn.SafeToRetry(err):
		return true
	case errors.As(err, &connectErr):
		return true
	case errors.As(err, &opErr):
		return opErr.Op == "dial"
	default:
		return false
	}
}

func (s *Store) closeRows(rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		if s.logger != nil {
			s.logger.Warn(logMsgCloseRowsFailed, logAttrError, closeErr.Error())
		}
	}
}

func (s *Store) logQueryWithDuration(sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, durationToMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

func (s *Store) logOperation(action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

func (s *Store) logError(msg string, err error, sqlQuery string) {
	if s.logger == nil {
		return
	}

	if sqlQuery == "" {
		s.logger.Error(msg, logAttrError, err.Error())
		return
	}

	s.logger.Error(msg, logAttrError, err.Error(), logAttrQuery, sqlQuery)
}

// durationToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func durationToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

var _ lending.Store = (*Store)(nil)
