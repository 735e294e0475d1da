// Package internal contains helpers that are private to authgate: secure
// random generation and the shared encodings for tokens, codes and challenges.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - crypt: AES-GCM sealing of secrets stored at rest
//   - limiters: the named buckets guarding each operation
//   - security: configuration posture report
//   - testutil: throwaway SQLite and Redis backends for tests
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
