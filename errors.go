package authgate

import (
	"errors"
	"net/http"
)

// Kind classifies a rejection so callers can pick a status code and message
// without matching individual sentinels.
type Kind uint8

const (
	KindInternal Kind = iota
	KindAuthenticationRequired
	KindForbidden
	KindRateLimited
	KindValidationFailed
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuthenticationRequired:
		return "authentication_required"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindValidationFailed:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the only error type returned by Engine operations.
//
// Message is safe to show to the end user. Values carries non-secret form
// input (email, username) for redisplay; it never holds passwords or codes.
type Error struct {
	Kind    Kind
	Message string
	Values  map[string]string
	Err     error

	sentinel *Error
	kindOnly bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels by kind and specific sentinels by identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.kindOnly {
		return e.Kind == t.Kind
	}
	return e == t || (e.sentinel != nil && e.sentinel == t)
}

func kindSentinel(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg, kindOnly: true}
}

func sentinel(k Kind, msg string) *Error {
	return &Error{Kind: k, Message: msg}
}

// Kind sentinels; errors.Is(err, ErrRateLimited) holds for every rate-limited rejection.
var (
	ErrAuthenticationRequired = kindSentinel(KindAuthenticationRequired, "Not authenticated")
	ErrForbidden              = kindSentinel(KindForbidden, "Forbidden")
	ErrRateLimited            = kindSentinel(KindRateLimited, "Too many requests")
	ErrValidationFailed       = kindSentinel(KindValidationFailed, "Invalid or missing fields")
	ErrNotFound               = kindSentinel(KindNotFound, "Not found")
	ErrConflict               = kindSentinel(KindConflict, "Conflict")
	ErrInternal               = kindSentinel(KindInternal, "Internal error")
)

var (
	ErrMissingCredentials      = sentinel(KindValidationFailed, "Please enter your email and password.")
	ErrInvalidEmail            = sentinel(KindValidationFailed, "Invalid email")
	ErrInvalidUsername         = sentinel(KindValidationFailed, "Invalid username")
	ErrInvalidName             = sentinel(KindValidationFailed, "Invalid name")
	ErrWeakPassword            = sentinel(KindValidationFailed, "Weak password")
	ErrIncorrectPassword       = sentinel(KindValidationFailed, "Invalid password")
	ErrEmailInUse              = sentinel(KindConflict, "Email is already used")
	ErrAccountNotFound         = sentinel(KindNotFound, "Account does not exist")
	ErrMissingCode             = sentinel(KindValidationFailed, "Please enter your code")
	ErrIncorrectCode           = sentinel(KindValidationFailed, "Invalid code")
	ErrVerificationCodeExpired = sentinel(KindValidationFailed, "The verification code was expired. We sent another code to your inbox.")
	ErrVerificationNotFound    = sentinel(KindNotFound, "Verification request not found")
	ErrEmailNotVerified        = sentinel(KindForbidden, "Email not verified")
	ErrTwoFactorNotVerified    = sentinel(KindForbidden, "2FA not verified")
	ErrTwoFactorNotEnabled     = sentinel(KindForbidden, "2FA not enabled")
	ErrInvalidTOTPKey          = sentinel(KindValidationFailed, "Invalid key")
	ErrInvalidRecoveryCode     = sentinel(KindValidationFailed, "Invalid recovery code")
	ErrInvalidWebAuthnData     = sentinel(KindValidationFailed, "Invalid data")
	ErrUnsupportedAlgorithm    = sentinel(KindValidationFailed, "Unsupported algorithm")
	ErrInvalidCredentialData   = sentinel(KindConflict, "Invalid data")
	ErrTooManyCredentials      = sentinel(KindConflict, "Too many credentials")
	ErrCredentialNotFound      = sentinel(KindNotFound, "Invalid credential ID")
	ErrEngineNotReady          = sentinel(KindInternal, "Engine not initialized")
)

func fail(base *Error, cause error, values map[string]string) *Error {
	return &Error{
		Kind:     base.Kind,
		Message:  base.Message,
		Values:   values,
		Err:      cause,
		sentinel: base,
	}
}

func internalError(cause error) *Error {
	return fail(ErrInternal, cause, nil)
}

func rateLimited(values map[string]string) *Error {
	return fail(ErrRateLimited, nil, values)
}

// KindOf reports the kind of err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps a kind to the status code a handler should reply with.
func HTTPStatus(k Kind) int {
	switch k {
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
