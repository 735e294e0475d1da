package sqlstore

import (
	"context"

	"github.com/MrEthical07/authgate/store"
)

type resetUserRow struct {
	SessionID         string `db:"session_id"`
	SessionEmail      string `db:"session_email"`
	Code              string `db:"code"`
	ExpiresAt         int64  `db:"expires_at"`
	SessionVerified   bool   `db:"session_email_verified"`
	TwoFactorVerified bool   `db:"two_factor_verified"`
	userRow
}

func (s *Store) CreatePasswordResetSession(ctx context.Context, r store.PasswordResetSession) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO password_reset_session
		(id, user_id, email, code, expires_at, email_verified, two_factor_verified) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.UserID, r.Email, r.Code, unix(r.ExpiresAt), r.EmailVerified, r.TwoFactorVerified)
	return classify(err)
}

func (s *Store) GetPasswordResetSessionWithUser(ctx context.Context, id string) (*store.PasswordResetSession, *store.User, error) {
	var row resetUserRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT r.id AS session_id, r.email AS session_email, r.code, r.expires_at,
		r.email_verified AS session_email_verified, r.two_factor_verified, `+userColumns+`
		FROM password_reset_session r INNER JOIN auth_user u ON u.id = r.user_id WHERE r.id = ?`), id)
	if err != nil {
		return nil, nil, classify(err)
	}
	rs := &store.PasswordResetSession{
		ID:                row.SessionID,
		UserID:            row.ID,
		Email:             row.SessionEmail,
		Code:              row.Code,
		ExpiresAt:         fromUnix(row.ExpiresAt),
		EmailVerified:     row.SessionVerified,
		TwoFactorVerified: row.TwoFactorVerified,
	}
	return rs, row.user(), nil
}

func (s *Store) SetPasswordResetEmailVerified(ctx context.Context, id string) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE password_reset_session SET email_verified = ? WHERE id = ?`), true, id))
}

func (s *Store) SetPasswordResetTwoFactorVerified(ctx context.Context, id string) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE password_reset_session SET two_factor_verified = ? WHERE id = ?`), true, id))
}

func (s *Store) DeletePasswordResetSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM password_reset_session WHERE id = ?`), id)
	return classify(err)
}

func (s *Store) DeleteUserPasswordResetSessions(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM password_reset_session WHERE user_id = ?`), userID)
	return classify(err)
}
