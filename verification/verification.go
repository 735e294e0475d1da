// Package verification issues and checks email verification requests. Each
// user has at most one outstanding request; issuing a new one replaces it.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/internal"
	"github.com/MrEthical07/authgate/store"
	"github.com/segmentio/ksuid"
)

const (
	DefaultLifetime   = 10 * time.Minute
	DefaultCodeDigits = 8
)

type Config struct {
	Lifetime   time.Duration
	CodeDigits int
}

type Manager struct {
	store    store.EmailVerifications
	lifetime time.Duration
	digits   int
	now      func() time.Time
}

func NewManager(st store.EmailVerifications, cfg Config) *Manager {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.CodeDigits == 0 {
		cfg.CodeDigits = DefaultCodeDigits
	}
	return &Manager{store: st, lifetime: cfg.Lifetime, digits: cfg.CodeDigits, now: time.Now}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create replaces any outstanding request of userID with a new one for email.
func (m *Manager) Create(ctx context.Context, userID int64, email string) (*store.EmailVerificationRequest, error) {
	code, err := internal.NewOTP(m.digits)
	if err != nil {
		return nil, err
	}
	r := store.EmailVerificationRequest{
		ID:        ksuid.New().String(),
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: m.now().Add(m.lifetime).Truncate(time.Second),
	}
	if err := m.store.ReplaceEmailVerificationRequest(ctx, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Get returns the request only if it belongs to userID; otherwise nil, nil.
// Expiry is reported through Expired rather than hidden, so callers can
// reissue a code instead of failing silently.
func (m *Manager) Get(ctx context.Context, userID int64, id string) (*store.EmailVerificationRequest, error) {
	if id == "" {
		return nil, nil
	}
	r, err := m.store.GetUserEmailVerificationRequest(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

func (m *Manager) Expired(r *store.EmailVerificationRequest) bool {
	return !m.now().Before(r.ExpiresAt)
}

func (m *Manager) DeleteAll(ctx context.Context, userID int64) error {
	return m.store.DeleteUserEmailVerificationRequests(ctx, userID)
}

// CodeMatches compares codes in constant time.
func CodeMatches(expected, got string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
