// Package session manages login sessions and password-reset sessions.
//
// Both are addressed by opaque bearer tokens handed to the client. Only the
// SHA-256 of a token is stored (see [HashToken]), so the token itself never
// reaches the database.
//
// # Lifetimes
//
// Login sessions live 30 days and slide: once fewer than 15 days remain, the
// next successful validation extends them to a full 30 days. Reset sessions
// live 10 minutes, never slide, and are unique per user.
//
// # What this package must NOT do
//
//   - Set cookies or read requests; HTTP concerns live in middleware and the root package.
//   - Apply rate limits or decide what a missing second factor means.
package session
