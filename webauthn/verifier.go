package webauthn

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/MrEthical07/authgate/internal"
)

// Config identifies the relying party.
type Config struct {
	RPID   string
	Origin string
}

// Options tighten verification per credential kind.
type Options struct {
	RequireUserVerification bool
}

// Registration is the raw response of navigator.credentials.create.
type Registration struct {
	AttestationObject []byte
	ClientDataJSON    []byte
}

// Assertion is the raw response of navigator.credentials.get.
type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
}

// RegisteredKey is what gets stored for a new credential.
type RegisteredKey struct {
	ID        []byte
	Algorithm int
	PublicKey []byte
}

// Verifier checks responses against one relying party. It is safe for
// concurrent use when its ChallengeSet is.
type Verifier struct {
	rpID       string
	origin     string
	challenges ChallengeSet
}

func NewVerifier(cfg Config, challenges ChallengeSet) *Verifier {
	return &Verifier{rpID: cfg.RPID, origin: cfg.Origin, challenges: challenges}
}

// IssueChallenge creates and remembers a fresh 20-byte challenge.
func (v *Verifier) IssueChallenge(ctx context.Context) ([]byte, error) {
	c, err := internal.NewChallenge()
	if err != nil {
		return nil, err
	}
	if err := v.challenges.Add(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (v *Verifier) checkAuthData(a *AuthenticatorData, opts Options) error {
	if !a.VerifyRPIDHash(v.rpID) {
		return fmt.Errorf("%w: rp id hash mismatch", ErrInvalidData)
	}
	if !a.UserPresent() {
		return fmt.Errorf("%w: user not present", ErrInvalidData)
	}
	if opts.RequireUserVerification && !a.UserVerified() {
		return fmt.Errorf("%w: user not verified", ErrInvalidData)
	}
	return nil
}

// checkClientData consumes the challenge before comparing the origin, so a
// response that reaches this point can never be replayed.
func (v *Verifier) checkClientData(ctx context.Context, raw []byte, wantType string) error {
	cd, err := ParseClientDataJSON(raw)
	if err != nil {
		return err
	}
	if cd.Type != wantType {
		return fmt.Errorf("%w: client data type %q", ErrInvalidData, cd.Type)
	}
	ok, err := v.challenges.Consume(ctx, cd.Challenge)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unknown challenge", ErrInvalidData)
	}
	if cd.Origin != v.origin {
		return fmt.Errorf("%w: origin %q", ErrInvalidData, cd.Origin)
	}
	if cd.CrossOrigin {
		return fmt.Errorf("%w: cross-origin request", ErrInvalidData)
	}
	return nil
}

// VerifyRegistration validates a "none" attestation and returns the key to store.
func (v *Verifier) VerifyRegistration(ctx context.Context, in Registration, opts Options) (*RegisteredKey, error) {
	format, authData, err := ParseAttestationObject(in.AttestationObject)
	if err != nil {
		return nil, err
	}
	if format != "none" {
		return nil, fmt.Errorf("%w: attestation format %q", ErrInvalidData, format)
	}
	if err := v.checkAuthData(authData, opts); err != nil {
		return nil, err
	}
	credID := authData.CredentialID()
	if len(credID) == 0 {
		return nil, fmt.Errorf("%w: missing credential", ErrInvalidData)
	}
	if err := v.checkClientData(ctx, in.ClientDataJSON, ClientDataTypeCreate); err != nil {
		return nil, err
	}

	alg, pub, err := EncodePublicKey(authData.AttData.CredentialPublicKey)
	if err != nil {
		return nil, err
	}
	return &RegisteredKey{ID: credID, Algorithm: alg, PublicKey: pub}, nil
}

// VerifyAssertion checks a signature made by a stored key.
func (v *Verifier) VerifyAssertion(ctx context.Context, in Assertion, algorithm int, publicKey []byte, opts Options) error {
	authData, err := ParseAuthenticatorData(in.AuthenticatorData)
	if err != nil {
		return err
	}
	if err := v.checkAuthData(authData, opts); err != nil {
		return err
	}
	if err := v.checkClientData(ctx, in.ClientDataJSON, ClientDataTypeGet); err != nil {
		return err
	}

	key, err := storedKey(algorithm, publicKey)
	if err != nil {
		return err
	}
	clientDataHash := sha256.Sum256(in.ClientDataJSON)
	signed := make([]byte, 0, len(in.AuthenticatorData)+len(clientDataHash))
	signed = append(signed, in.AuthenticatorData...)
	signed = append(signed, clientDataHash[:]...)
	if ok, err := key.Verify(signed, in.Signature); err != nil || !ok {
		return fmt.Errorf("%w: bad signature", ErrInvalidData)
	}
	return nil
}
