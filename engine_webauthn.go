package authgate

import (
	"context"
	"errors"

	"github.com/MrEthical07/authgate/store"
	"github.com/MrEthical07/authgate/webauthn"
)

// CredentialRegistration is the posted result of navigator.credentials.create
// plus the display name chosen by the user.
type CredentialRegistration struct {
	Name              string
	AttestationObject []byte
	ClientDataJSON    []byte
}

// IssueWebAuthnChallenge returns a single-use challenge for a create or get
// ceremony. Issuance is paced per client IP.
func (e *Engine) IssueWebAuthnChallenge(ctx context.Context) ([]byte, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.consume(ctx, e.limits.WebAuthnChallengeIP, "webauthn_challenge_ip", ipKey(ctx), 0); err != nil {
		return nil, err
	}
	challenge, err := e.webauthn.IssueChallenge(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	e.metricInc(MetricWebAuthnChallengeIssued)
	return challenge, nil
}

func (e *Engine) RegisterPasskey(ctx context.Context, s *store.Session, u *store.User, in CredentialRegistration) error {
	return e.registerCredential(ctx, store.Passkey, s, u, in)
}

func (e *Engine) RegisterSecurityKey(ctx context.Context, s *store.Session, u *store.User, in CredentialRegistration) error {
	return e.registerCredential(ctx, store.SecurityKey, s, u, in)
}

func (e *Engine) VerifyPasskey(ctx context.Context, s *store.Session, u *store.User, in webauthn.Assertion) error {
	return e.verifySessionCredential(ctx, store.Passkey, s, u, in)
}

func (e *Engine) VerifySecurityKey(ctx context.Context, s *store.Session, u *store.User, in webauthn.Assertion) error {
	return e.verifySessionCredential(ctx, store.SecurityKey, s, u, in)
}

func (e *Engine) VerifyPasswordResetPasskey(ctx context.Context, rs *store.PasswordResetSession, u *store.User, in webauthn.Assertion) error {
	return e.verifyResetCredential(ctx, store.Passkey, rs, u, in)
}

func (e *Engine) VerifyPasswordResetSecurityKey(ctx context.Context, rs *store.PasswordResetSession, u *store.User, in webauthn.Assertion) error {
	return e.verifyResetCredential(ctx, store.SecurityKey, rs, u, in)
}

func (e *Engine) ListPasskeys(ctx context.Context, u *store.User) ([]store.WebAuthnCredential, error) {
	return e.listCredentials(ctx, store.Passkey, u)
}

func (e *Engine) ListSecurityKeys(ctx context.Context, u *store.User) ([]store.WebAuthnCredential, error) {
	return e.listCredentials(ctx, store.SecurityKey, u)
}

func (e *Engine) DeletePasskey(ctx context.Context, s *store.Session, u *store.User, credentialID []byte) error {
	return e.deleteCredential(ctx, store.Passkey, s, u, credentialID)
}

func (e *Engine) DeleteSecurityKey(ctx context.Context, s *store.Session, u *store.User, credentialID []byte) error {
	return e.deleteCredential(ctx, store.SecurityKey, s, u, credentialID)
}

func credentialOptions(kind store.CredentialKind) webauthn.Options {
	return webauthn.Options{RequireUserVerification: kind == store.Passkey}
}

func registered(kind store.CredentialKind, u *store.User) bool {
	if kind == store.Passkey {
		return u.RegisteredPasskey
	}
	return u.RegisteredSecurityKey
}

func (e *Engine) credentialLimit(kind store.CredentialKind) int {
	if kind == store.Passkey {
		return e.config.WebAuthn.MaxPasskeys
	}
	return e.config.WebAuthn.MaxSecurityKeys
}

// webauthnError maps verifier failures onto the public taxonomy.
func webauthnError(err error) error {
	switch {
	case errors.Is(err, webauthn.ErrInvalidData):
		return fail(ErrInvalidWebAuthnData, err, nil)
	case errors.Is(err, webauthn.ErrUnsupportedAlgorithm):
		return fail(ErrUnsupportedAlgorithm, err, nil)
	default:
		return internalError(err)
	}
}

func (e *Engine) registerCredential(ctx context.Context, kind store.CredentialKind, s *store.Session, u *store.User, in CredentialRegistration) error {
	if err := requireSession(s, u); err != nil {
		return err
	}
	if err := requireEmailVerified(u); err != nil {
		return err
	}
	if err := require2FA(s, u); err != nil {
		return err
	}
	if in.Name == "" || len(in.AttestationObject) == 0 || len(in.ClientDataJSON) == 0 {
		return ErrValidationFailed
	}

	key, err := e.webauthn.VerifyRegistration(ctx, webauthn.Registration{
		AttestationObject: in.AttestationObject,
		ClientDataJSON:    in.ClientDataJSON,
	}, credentialOptions(kind))
	if err != nil {
		return e.webauthnRejected(ctx, auditEventWebAuthnRegister, kind, u.ID, s.ID, webauthnError(err))
	}

	err = e.store.CreateCredential(ctx, kind, store.WebAuthnCredential{
		ID:        key.ID,
		UserID:    u.ID,
		Name:      in.Name,
		Algorithm: key.Algorithm,
		PublicKey: key.PublicKey,
	}, e.credentialLimit(kind))
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return e.webauthnRejected(ctx, auditEventWebAuthnRegister, kind, u.ID, s.ID, fail(ErrInvalidCredentialData, err, nil))
	case errors.Is(err, store.ErrCredentialLimit):
		return e.webauthnRejected(ctx, auditEventWebAuthnRegister, kind, u.ID, s.ID, fail(ErrTooManyCredentials, err, nil))
	case err != nil:
		return internalError(err)
	}

	if err := e.sessions.SetTwoFactorVerified(ctx, s.ID); err != nil {
		return internalError(err)
	}
	e.metricInc(MetricWebAuthnRegistered)
	e.emitAudit(ctx, auditEventWebAuthnRegister, true, u.ID, s.ID, nil, kindMetadata(kind))
	return nil
}

// checkAssertion looks up the credential and verifies the signature.
func (e *Engine) checkAssertion(ctx context.Context, kind store.CredentialKind, u *store.User, in webauthn.Assertion) error {
	if len(in.CredentialID) == 0 || len(in.AuthenticatorData) == 0 || len(in.ClientDataJSON) == 0 || len(in.Signature) == 0 {
		return ErrValidationFailed
	}
	cred, err := e.store.GetCredential(ctx, kind, u.ID, in.CredentialID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrCredentialNotFound
	}
	if err != nil {
		return internalError(err)
	}
	if err := e.webauthn.VerifyAssertion(ctx, in, cred.Algorithm, cred.PublicKey, credentialOptions(kind)); err != nil {
		return webauthnError(err)
	}
	return nil
}

func (e *Engine) verifySessionCredential(ctx context.Context, kind store.CredentialKind, s *store.Session, u *store.User, in webauthn.Assertion) error {
	if err := requireSession(s, u); err != nil {
		return err
	}
	if err := requireEmailVerified(u); err != nil {
		return err
	}
	if !registered(kind, u) {
		return ErrTwoFactorNotEnabled
	}
	if err := e.checkAssertion(ctx, kind, u, in); err != nil {
		return e.webauthnRejected(ctx, auditEventWebAuthnVerify, kind, u.ID, s.ID, err)
	}
	if err := e.sessions.SetTwoFactorVerified(ctx, s.ID); err != nil {
		return internalError(err)
	}
	e.metricInc(MetricWebAuthnSuccess)
	e.emitAudit(ctx, auditEventWebAuthnVerify, true, u.ID, s.ID, nil, kindMetadata(kind))
	return nil
}

func (e *Engine) verifyResetCredential(ctx context.Context, kind store.CredentialKind, rs *store.PasswordResetSession, u *store.User, in webauthn.Assertion) error {
	if err := requireResetEmailVerified(rs, u); err != nil {
		return err
	}
	if !registered(kind, u) {
		return ErrTwoFactorNotEnabled
	}
	if err := e.checkAssertion(ctx, kind, u, in); err != nil {
		return e.webauthnRejected(ctx, auditEventWebAuthnVerify, kind, u.ID, "", err)
	}
	if err := e.resets.SetTwoFactorVerified(ctx, rs.ID); err != nil {
		return internalError(err)
	}
	e.metricInc(MetricWebAuthnSuccess)
	e.emitAudit(ctx, auditEventWebAuthnVerify, true, u.ID, "", nil, kindMetadata(kind))
	return nil
}

func (e *Engine) listCredentials(ctx context.Context, kind store.CredentialKind, u *store.User) ([]store.WebAuthnCredential, error) {
	if u == nil {
		return nil, ErrAuthenticationRequired
	}
	creds, err := e.store.ListCredentials(ctx, kind, u.ID)
	if err != nil {
		return nil, internalError(err)
	}
	return creds, nil
}

func (e *Engine) deleteCredential(ctx context.Context, kind store.CredentialKind, s *store.Session, u *store.User, credentialID []byte) error {
	if err := requireSession(s, u); err != nil {
		return err
	}
	if err := requireEmailVerified(u); err != nil {
		return err
	}
	if err := requireVerified2FA(s, u); err != nil {
		return err
	}
	deleted, err := e.store.DeleteCredential(ctx, kind, u.ID, credentialID)
	if err != nil {
		return internalError(err)
	}
	if !deleted {
		return ErrCredentialNotFound
	}
	e.emitAudit(ctx, auditEventWebAuthnDelete, true, u.ID, s.ID, nil, kindMetadata(kind))
	return nil
}

func (e *Engine) webauthnRejected(ctx context.Context, event string, kind store.CredentialKind, userID int64, sessionID string, err error) error {
	if event == auditEventWebAuthnRegister {
		e.metricInc(MetricWebAuthnRejected)
	} else {
		e.metricInc(MetricWebAuthnFailure)
	}
	e.emitAudit(ctx, event, false, userID, sessionID, err, kindMetadata(kind))
	return err
}

func kindMetadata(kind store.CredentialKind) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"kind": kind.String()}
	}
}
