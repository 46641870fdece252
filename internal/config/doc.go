// Package config turns flags and environment variables into the settings of the librarian command
// and builds the connections and providers those settings call for.
//
// Postgres connections can be opened with pgx.Pool, sql.DB or sqlx.DB (both via github.com/lib/pq),
// Redis connections with gopkg.in/redis.v5. OpenTelemetry providers are created from the SDK
// and registered globally.
package config
