// Package postgreswrapper opens a postgresstore.Store on the connection type selected by ADAPTER_TYPE
// and gives tests direct access to the snapshots table.
package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/internal/config"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresstore"
	"github.com/AntonStoeckl/library-lending-go/testutil/helper"
)

// Wrapper abstracts over the supported connection types.
type Wrapper interface {
	// NewStore opens another Store on the same connection and table.
	NewStore(t testing.TB, options ...postgresstore.Option) *postgresstore.Store
	TableName() string
	Exec(t testing.TB, query string)
	Close()
}

// PGXPoolWrapper wraps a pgxpool-based Store.
type PGXPoolWrapper struct {
	pool      *pgxpool.Pool
	tableName string
}

func (w *PGXPoolWrapper) NewStore(t testing.TB, options ...postgresstore.Option) *postgresstore.Store {
	store, err := postgresstore.NewStoreFromPGXPool(w.pool, withTable(w.tableName, options)...)
	require.NoError(t, err, "error creating the store in test setup")

	return store
}

func (w *PGXPoolWrapper) TableName() string { return w.tableName }

func (w *PGXPoolWrapper) Exec(t testing.TB, query string) {
	_, err := w.pool.Exec(context.Background(), query)
	require.NoError(t, err, "error executing sql in test setup")
}

func (w *PGXPoolWrapper) Close() { w.pool.Close() }

// SQLDBWrapper wraps a sql.DB-based Store.
type SQLDBWrapper struct {
	db        *sql.DB
	tableName string
}

func (w *SQLDBWrapper) NewStore(t testing.TB, options ...postgresstore.Option) *postgresstore.Store {
	store, err := postgresstore.NewStoreFromSQLDB(w.db, withTable(w.tableName, options)...)
	require.NoError(t, err, "error creating the store in test setup")

	return store
}

func (w *SQLDBWrapper) TableName() string { return w.tableName }

func (w *SQLDBWrapper) Exec(t testing.TB, query string) {
	_, err := w.db.Exec(query)
	require.NoError(t, err, "error executing sql in test setup")
}

func (w *SQLDBWrapper) Close() { _ = w.db.Close() }

// SQLXWrapper wraps a sqlx.DB-based Store.
type SQLXWrapper struct {
	db        *sqlx.DB
	tableName string
}

func (w *SQLXWrapper) NewStore(t testing.TB, options ...postgresstore.Option) *postgresstore.Store {
	store, err := postgresstore.NewStoreFromSQLX(w.db, withTable(w.tableName, options)...)
	require.NoError(t, err, "error creating the store in test setup")

	return store
}

func (w *SQLXWrapper) TableName() string { return w.tableName }

func (w *SQLXWrapper) Exec(t testing.TB, query string) {
	_, err := w.db.Exec(query)
	require.NoError(t, err, "error executing sql in test setup")
}

func (w *SQLXWrapper) Close() { _ = w.db.Close() }

func withTable(tableName string, options []postgresstore.Option) []postgresstore.Option {
	return append([]postgresstore.Option{postgresstore.WithTableName(tableName)}, options...)
}

// CreateWrapperWithTestConfig connects to the test database with the adapter named in ADAPTER_TYPE
// (pgx.pool by default) and creates a fresh snapshots table that is dropped when the test ends.
// The test is skipped if the database is not reachable.
func CreateWrapperWithTestConfig(t testing.TB) Wrapper {
	t.Helper()
	helper.SkipUnlessReachable(t, helper.PostgresTestAddr())

	ctx := context.Background()
	dsn := helper.PostgresTestDSN()
	tableName := "snapshots_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	var wrapper Wrapper

	switch adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE")); adapterType {
	case config.AdapterPGXPool, "":
		pool, err := config.NewPGXPool(ctx, dsn)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		wrapper = &PGXPoolWrapper{pool: pool, tableName: tableName}

	case config.AdapterSQLDB:
		db, err := config.NewSQLDB(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		wrapper = &SQLDBWrapper{db: db, tableName: tableName}

	case config.AdapterSQLX:
		db, err := config.NewSQLX(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		wrapper = &SQLXWrapper{db: db, tableName: tableName}

	default:
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapterType))
	}

	require.NoError(t, wrapper.NewStore(t).EnsureTable(ctx), "error creating the snapshots table")

	t.Cleanup(func() {
		wrapper.Exec(t, "DROP TABLE IF EXISTS "+tableName)
		wrapper.Close()
	})

	return wrapper
}
