package webauthn

import "errors"

var (
	// ErrInvalidData covers every malformed or mismatching response.
	ErrInvalidData = errors.New("webauthn: invalid data")
	// ErrUnsupportedAlgorithm is returned for COSE keys other than ES256/P-256 and RS256.
	ErrUnsupportedAlgorithm = errors.New("webauthn: unsupported algorithm")
	// ErrChallengeUnavailable wraps failures of the challenge backend.
	ErrChallengeUnavailable = errors.New("webauthn: challenge store unavailable")
)
