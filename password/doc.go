// Package password hashes passwords with Argon2id and judges their strength.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login.
//
// # Strength
//
// [StrengthChecker] accepts 8 to 255 bytes and, when a [BreachChecker] is
// configured, rejects passwords found by the Pwned Passwords range API.
// [PwnedChecker] sends only a five character SHA-1 prefix.
//
// # Architecture boundaries
//
// This package owns hashing, verification and strength checks only. Where a
// password is required (signup, reset, update) is decided by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other authgate package.
//   - Log plaintext passwords.
package password
