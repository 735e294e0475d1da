package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/internal"
	"github.com/MrEthical07/authgate/store"
)

const (
	DefaultResetLifetime = 10 * time.Minute
	DefaultCodeDigits    = 8
)

type ResetConfig struct {
	Lifetime   time.Duration
	CodeDigits int
}

// ResetManager owns password-reset sessions. A user has at most one live
// reset session: creating one removes the others.
type ResetManager struct {
	store    store.PasswordResets
	lifetime time.Duration
	digits   int
	now      func() time.Time
}

func NewResetManager(st store.PasswordResets, cfg ResetConfig) *ResetManager {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultResetLifetime
	}
	if cfg.CodeDigits == 0 {
		cfg.CodeDigits = DefaultCodeDigits
	}
	return &ResetManager{store: st, lifetime: cfg.Lifetime, digits: cfg.CodeDigits, now: time.Now}
}

func (m *ResetManager) WithClock(now func() time.Time) *ResetManager {
	m.now = now
	return m
}

// Create invalidates every reset session of userID and starts a new one
// addressed to email, with a fresh numeric code.
func (m *ResetManager) Create(ctx context.Context, token string, userID int64, email string) (*store.PasswordResetSession, error) {
	code, err := internal.NewOTP(m.digits)
	if err != nil {
		return nil, err
	}
	if err := m.store.DeleteUserPasswordResetSessions(ctx, userID); err != nil {
		return nil, err
	}
	s := store.PasswordResetSession{
		ID:        HashToken(token),
		UserID:    userID,
		Email:     email,
		Code:      code,
		ExpiresAt: m.now().Add(m.lifetime).Truncate(time.Second),
	}
	if err := m.store.CreatePasswordResetSession(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate mirrors Manager.Validate without any sliding expiry.
func (m *ResetManager) Validate(ctx context.Context, token string) (*store.PasswordResetSession, *store.User, error) {
	id := HashToken(token)
	s, u, err := m.store.GetPasswordResetSessionWithUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !m.now().Before(s.ExpiresAt) {
		if err := m.store.DeletePasswordResetSession(ctx, id); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	return s, u, nil
}

func (m *ResetManager) SetEmailVerified(ctx context.Context, id string) error {
	return m.store.SetPasswordResetEmailVerified(ctx, id)
}

func (m *ResetManager) SetTwoFactorVerified(ctx context.Context, id string) error {
	return m.store.SetPasswordResetTwoFactorVerified(ctx, id)
}

func (m *ResetManager) Invalidate(ctx context.Context, id string) error {
	return m.store.DeletePasswordResetSession(ctx, id)
}

func (m *ResetManager) InvalidateAll(ctx context.Context, userID int64) error {
	return m.store.DeleteUserPasswordResetSessions(ctx, userID)
}
