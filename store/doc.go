// Package store defines the persisted entities of the authentication core and
// the data-access contract every backend implements.
//
// # Architecture boundaries
//
// Entities are plain structs. Derived values, such as whether a user has any
// second factor, are methods computed from stored facts and are never stored.
// Implementations translate backend-specific failures into the sentinels in
// errors.go so callers can branch with errors.Is.
//
// # What this package must NOT do
//
//   - Hash, encrypt or otherwise transform secrets; callers hand in what is stored.
//   - Apply rate limits or session policy.
package store
