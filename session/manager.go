package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authgate/store"
)

const (
	DefaultLifetime      = 30 * 24 * time.Hour
	DefaultRefreshWindow = 15 * 24 * time.Hour
)

// Config sizes login sessions. A session whose remaining lifetime drops
// below RefreshWindow is extended to a full Lifetime on the next validation.
type Config struct {
	Lifetime      time.Duration
	RefreshWindow time.Duration
}

// Flags are the initial attributes of a new session.
type Flags struct {
	TwoFactorVerified bool
}

// Manager creates and validates login sessions.
type Manager struct {
	store         store.Sessions
	lifetime      time.Duration
	refreshWindow time.Duration
	now           func() time.Time
	hooks         Hooks
}

// Hooks observe Validate outcomes. Nil fields are skipped.
type Hooks struct {
	Refreshed func()
	Expired   func()
}

func NewManager(st store.Sessions, cfg Config) *Manager {
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	if cfg.RefreshWindow <= 0 || cfg.RefreshWindow > cfg.Lifetime {
		cfg.RefreshWindow = cfg.Lifetime / 2
	}
	return &Manager{
		store:         st,
		lifetime:      cfg.Lifetime,
		refreshWindow: cfg.RefreshWindow,
		now:           time.Now,
	}
}

// WithClock replaces the time source; intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) WithHooks(h Hooks) *Manager {
	m.hooks = h
	return m
}

// Create stores a session for token and returns it.
func (m *Manager) Create(ctx context.Context, token string, userID int64, flags Flags) (*store.Session, error) {
	s := store.Session{
		ID:                HashToken(token),
		UserID:            userID,
		ExpiresAt:         m.now().Add(m.lifetime).Truncate(time.Second),
		TwoFactorVerified: flags.TwoFactorVerified,
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate resolves token to its session and user. An unknown or expired
// token yields nil, nil, nil; expired rows are deleted on the way. Sessions
// inside the refresh window are extended and persisted before returning.
func (m *Manager) Validate(ctx context.Context, token string) (*store.Session, *store.User, error) {
	id := HashToken(token)
	s, u, err := m.store.GetSessionWithUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	now := m.now()
	if !now.Before(s.ExpiresAt) {
		if err := m.store.DeleteSession(ctx, id); err != nil {
			return nil, nil, err
		}
		if m.hooks.Expired != nil {
			m.hooks.Expired()
		}
		return nil, nil, nil
	}
	if !now.Before(s.ExpiresAt.Add(-m.refreshWindow)) {
		expiresAt := now.Add(m.lifetime).Truncate(time.Second)
		if err := m.store.UpdateSessionExpiry(ctx, id, expiresAt); err != nil {
			return nil, nil, err
		}
		s.ExpiresAt = expiresAt
		if m.hooks.Refreshed != nil {
			m.hooks.Refreshed()
		}
	}
	return s, u, nil
}

func (m *Manager) Invalidate(ctx context.Context, sessionID string) error {
	return m.store.DeleteSession(ctx, sessionID)
}

func (m *Manager) InvalidateAll(ctx context.Context, userID int64) error {
	return m.store.DeleteUserSessions(ctx, userID)
}

// SetTwoFactorVerified marks the session as having passed a second factor.
// The flag is never cleared on an existing session.
func (m *Manager) SetTwoFactorVerified(ctx context.Context, sessionID string) error {
	return m.store.SetSessionTwoFactorVerified(ctx, sessionID)
}
