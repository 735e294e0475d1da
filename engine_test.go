package authgate

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/internal/testutil"
	"github.com/MrEthical07/authgate/store"
	"github.com/MrEthical07/authgate/store/sqlstore"
	"github.com/MrEthical07/authgate/webauthn"
	"github.com/fxamacker/cbor/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	testPassword = "correct horse battery"
	testRPID     = "localhost"
	testOrigin   = "http://localhost:3000"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureMailer struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
	sent         int
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{verification: map[string]string{}, reset: map[string]string{}}
}

func (m *captureMailer) SendVerificationEmail(_ context.Context, address, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification[address] = code
	m.sent++
	return nil
}

func (m *captureMailer) SendPasswordResetEmail(_ context.Context, address, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[address] = code
	m.sent++
	return nil
}

func (m *captureMailer) verificationCode(address string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verification[address]
}

func (m *captureMailer) resetCode(address string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reset[address]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WebAuthn.RPID = testRPID
	cfg.WebAuthn.Origin = testOrigin
	cfg.Security.EncryptionKey = strings.Repeat("0f", 32)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.RateLimit.SweepInterval = 0
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine *Engine
	clock  *testClock
	mail   *captureMailer
	store  *sqlstore.Store
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	env := &testEnv{clock: newTestClock(), mail: newCaptureMailer(), store: testutil.NewStore(t)}
	engine, err := New().
		WithConfig(cfg).
		WithStore(env.store).
		WithMailer(env.mail).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func (env *testEnv) signup(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := env.engine.Signup(context.Background(), SignupInput{Email: email, Username: "user_" + strings.Split(email, "@")[0], Password: testPassword})
	if err != nil {
		t.Fatalf("Signup() error: %v", err)
	}
	return res
}

func (env *testEnv) validate(t *testing.T, token string) (*store.Session, *store.User) {
	t.Helper()
	s, u, err := env.engine.ValidateSessionToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateSessionToken() error: %v", err)
	}
	return s, u
}

// verifiedUser signs up and confirms the email address.
func (env *testEnv) verifiedUser(t *testing.T, email string) *AuthResult {
	t.Helper()
	res := env.signup(t, email)
	s, u := env.validate(t, res.Token)
	if _, err := env.engine.VerifyEmail(context.Background(), s, u, res.EmailVerification.ID, env.mail.verificationCode(email)); err != nil {
		t.Fatalf("VerifyEmail() error: %v", err)
	}
	return res
}

func (env *testEnv) totpCode(t *testing.T, key []byte) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(key), env.clock.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom() error: %v", err)
	}
	return code
}

// enableTOTP registers an authenticator for the session owner.
func (env *testEnv) enableTOTP(t *testing.T, token string) []byte {
	t.Helper()
	s, u := env.validate(t, token)
	key, err := env.engine.GenerateTOTPKey(u)
	if err != nil {
		t.Fatalf("GenerateTOTPKey() error: %v", err)
	}
	if err := env.engine.SetupTOTP(context.Background(), s, u, key.Encoded, env.totpCode(t, key.Key)); err != nil {
		t.Fatalf("SetupTOTP() error: %v", err)
	}
	return key.Key
}

func (env *testEnv) metric(id MetricID) uint64 {
	return env.engine.metrics.Value(id)
}

type testAuthenticator struct {
	key *ecdsa.PrivateKey
	id  []byte
}

func newTestAuthenticator(t *testing.T, id string) *testAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	return &testAuthenticator{key: key, id: []byte(id)}
}

func (a *testAuthenticator) clientData(t *testing.T, env *testEnv, typ string) []byte {
	t.Helper()
	challenge, err := env.engine.IssueWebAuthnChallenge(context.Background())
	if err != nil {
		t.Fatalf("IssueWebAuthnChallenge() error: %v", err)
	}
	b, err := json.Marshal(map[string]any{
		"type":      typ,
		"challenge": base64.RawURLEncoding.EncodeToString(challenge),
		"origin":    testOrigin,
	})
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}
	return b
}

func authDataHeader(flags byte) []byte {
	h := sha256.Sum256([]byte(testRPID))
	b := append([]byte(nil), h[:]...)
	b = append(b, flags)
	return binary.BigEndian.AppendUint32(b, 0)
}

func (a *testAuthenticator) register(t *testing.T, env *testEnv, flags byte) CredentialRegistration {
	t.Helper()
	cose, err := cbor.Marshal(map[int]any{
		1: 2, 3: webauthn.AlgorithmES256, -1: 1,
		-2: a.key.PublicKey.X.FillBytes(make([]byte, 32)),
		-3: a.key.PublicKey.Y.FillBytes(make([]byte, 32)),
	})
	if err != nil {
		t.Fatalf("cbor.Marshal() error: %v", err)
	}
	authData := authDataHeader(flags | 0x40)
	authData = append(authData, make([]byte, 16)...)
	authData = binary.BigEndian.AppendUint16(authData, uint16(len(a.id)))
	authData = append(authData, a.id...)
	authData = append(authData, cose...)
	att, err := cbor.Marshal(map[string]any{"fmt": "none", "attStmt": map[string]any{}, "authData": authData})
	if err != nil {
		t.Fatalf("cbor.Marshal() error: %v", err)
	}
	return CredentialRegistration{
		Name:              "key " + string(a.id),
		AttestationObject: att,
		ClientDataJSON:    a.clientData(t, env, webauthn.ClientDataTypeCreate),
	}
}

func (a *testAuthenticator) assert(t *testing.T, env *testEnv, flags byte) webauthn.Assertion {
	t.Helper()
	authData := authDataHeader(flags)
	clientData := a.clientData(t, env, webauthn.ClientDataTypeGet)
	clientHash := sha256.Sum256(clientData)
	digest := sha256.Sum256(append(append([]byte(nil), authData...), clientHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		t.Fatalf("SignASN1() error: %v", err)
	}
	return webauthn.Assertion{CredentialID: a.id, AuthenticatorData: authData, ClientDataJSON: clientData, Signature: sig}
}
