// Package sqlstore implements store.Store on top of sqlx for PostgreSQL
// (github.com/lib/pq) and SQLite (modernc.org/sqlite).
//
// Queries are written once with `?` placeholders and rebound per driver.
// Timestamps are stored as unix seconds. The second-factor flags of a user
// are computed with EXISTS subqueries over the credential tables on every
// read, so they cannot drift from the credentials themselves.
//
// # What this package must NOT do
//
//   - Interpret secrets. Hashes, encrypted codes and keys are opaque bytes here.
//   - Hold state outside the database handle.
package sqlstore
