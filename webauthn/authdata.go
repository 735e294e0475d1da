package webauthn

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncbor"
)

// AuthenticatorData is the parsed authenticator data structure.
type AuthenticatorData struct {
	protocol.AuthenticatorData
}

func (a *AuthenticatorData) UserPresent() bool  { return a.Flags.UserPresent() }
func (a *AuthenticatorData) UserVerified() bool { return a.Flags.UserVerified() }

// VerifyRPIDHash reports whether the data was produced for rpID.
func (a *AuthenticatorData) VerifyRPIDHash(rpID string) bool {
	want := sha256.Sum256([]byte(rpID))
	return subtle.ConstantTimeCompare(a.RPIDHash, want[:]) == 1
}

// CredentialID is empty unless the data carries an attested credential.
func (a *AuthenticatorData) CredentialID() []byte {
	if !a.Flags.HasAttestedCredentialData() {
		return nil
	}
	return a.AttData.CredentialID
}

// ParseAuthenticatorData decodes raw authenticator data. Trailing bytes are
// rejected.
func ParseAuthenticatorData(b []byte) (*AuthenticatorData, error) {
	a := &AuthenticatorData{}
	if err := a.Unmarshal(b); err != nil {
		return nil, fmt.Errorf("%w: authenticator data: %v", ErrInvalidData, err)
	}
	return a, nil
}

// ParseAttestationObject returns the attestation format and the parsed
// authenticator data.
func ParseAttestationObject(b []byte) (string, *AuthenticatorData, error) {
	var obj protocol.AttestationObject
	if err := webauthncbor.Unmarshal(b, &obj); err != nil {
		return "", nil, fmt.Errorf("%w: attestation object: %v", ErrInvalidData, err)
	}
	a, err := ParseAuthenticatorData(obj.RawAuthData)
	if err != nil {
		return "", nil, err
	}
	return obj.Format, a, nil
}
