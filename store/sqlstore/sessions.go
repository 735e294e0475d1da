package sqlstore

import (
	"context"
	"time"

	"github.com/MrEthical07/authgate/store"
)

type sessionUserRow struct {
	SessionID         string `db:"session_id"`
	ExpiresAt         int64  `db:"expires_at"`
	TwoFactorVerified bool   `db:"two_factor_verified"`
	userRow
}

func (s *Store) CreateSession(ctx context.Context, sess store.Session) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO auth_session (id, user_id, expires_at, two_factor_verified) VALUES (?, ?, ?, ?)`),
		sess.ID, sess.UserID, unix(sess.ExpiresAt), sess.TwoFactorVerified)
	return classify(err)
}

func (s *Store) GetSessionWithUser(ctx context.Context, id string) (*store.Session, *store.User, error) {
	var row sessionUserRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT s.id AS session_id, s.expires_at, s.two_factor_verified, `+userColumns+`
		FROM auth_session s INNER JOIN auth_user u ON u.id = s.user_id WHERE s.id = ?`), id)
	if err != nil {
		return nil, nil, classify(err)
	}
	sess := &store.Session{
		ID:                row.SessionID,
		UserID:            row.ID,
		ExpiresAt:         fromUnix(row.ExpiresAt),
		TwoFactorVerified: row.TwoFactorVerified,
	}
	return sess, row.user(), nil
}

func (s *Store) UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE auth_session SET expires_at = ? WHERE id = ?`), unix(expiresAt), id))
}

func (s *Store) SetSessionTwoFactorVerified(ctx context.Context, id string) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE auth_session SET two_factor_verified = ? WHERE id = ?`), true, id))
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM auth_session WHERE id = ?`), id)
	return classify(err)
}

func (s *Store) DeleteUserSessions(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM auth_session WHERE user_id = ?`), userID)
	return classify(err)
}
