// Package webauthn verifies WebAuthn registrations and assertions for
// passkeys and security keys.
//
// Parsing of authenticator data, attestation objects, client data and COSE
// keys, and the signature checks themselves, come from go-webauthn's
// protocol and webauthncose packages. This package owns the relying-party
// policy around them.
//
// Only the "none" attestation format is accepted: the relying party trusts
// the key it is handed, not the authenticator's provenance. Supported COSE
// algorithms are ES256 (P-256) and RS256. Registered keys are normalized to
// SEC1 uncompressed points and PKCS#1 DER respectively, which is what
// assertion verification expects back.
//
// Challenges are single use. A challenge is removed from its [ChallengeSet]
// before any other part of the response is trusted, so a replay fails even
// when the rest of the payload is valid.
//
// # What this package must NOT do
//
//   - Persist credentials or enforce per-user limits (the store does).
//   - Decide which credential kind requires user verification; callers pass Options.
package webauthn
