// Package postgresstore persists the library state as a JSONB document in PostgreSQL.
//
// Each library is one row of the snapshots table, keyed by library name. Every save bumps the row's
// revision, and a save only succeeds if the revision is still the one this Store last loaded or saved.
// If another process saved in between, Save returns lending.ErrConcurrencyConflict and nothing is written.
//
// The Store works with pgxpool.Pool, sql.DB (e.g. with github.com/lib/pq) and sqlx.DB.
// Statements are built with goqu and executed as plain SQL strings.
package postgresstore
