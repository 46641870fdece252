// Package adapters lets the snapshot store run on pgxpool.Pool, sql.DB or sqlx.DB.
//
// The store only needs two things from a connection: run a query and iterate rows,
// run a statement and read the affected row count. DBAdapter captures exactly that.
package adapters
