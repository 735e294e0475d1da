package authgate

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorMatchesKindAndSentinel(t *testing.T) {
	err := fail(ErrIncorrectPassword, nil, map[string]string{"email": "a@b.co"})

	if !errors.Is(err, ErrIncorrectPassword) {
		t.Fatal("expected sentinel match")
	}
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatal("expected kind match")
	}
	if errors.Is(err, ErrWeakPassword) {
		t.Fatal("sibling sentinel of the same kind must not match")
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatal("other kind must not match")
	}
	if err.Values["email"] != "a@b.co" {
		t.Fatalf("expected values to be kept, got %v", err.Values)
	}
}

func TestErrorWrappedStillMatches(t *testing.T) {
	err := fmt.Errorf("handler: %w", rateLimited(nil))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatal("expected wrapped rate limit to match")
	}
	if KindOf(err) != KindRateLimited {
		t.Fatalf("expected rate limited kind, got %v", KindOf(err))
	}
}

func TestInternalErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := internalError(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if !errors.Is(err, ErrInternal) {
		t.Fatal("expected internal kind")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("expected foreign errors to be internal")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		ErrAuthenticationRequired: http.StatusUnauthorized,
		ErrEmailNotVerified:       http.StatusForbidden,
		rateLimited(nil):          http.StatusTooManyRequests,
		ErrInvalidEmail:           http.StatusBadRequest,
		ErrCredentialNotFound:     http.StatusNotFound,
		ErrEmailInUse:             http.StatusConflict,
		errors.New("boom"):        http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := HTTPStatus(KindOf(err)); got != want {
			t.Fatalf("%v: expected %d, got %d", err, want, got)
		}
	}
}
