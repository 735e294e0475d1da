package sqlstore

import (
	"context"

	"github.com/MrEthical07/authgate/store"
	"github.com/jmoiron/sqlx"
)

type verificationRow struct {
	ID        string `db:"id"`
	UserID    int64  `db:"user_id"`
	Email     string `db:"email"`
	Code      string `db:"code"`
	ExpiresAt int64  `db:"expires_at"`
}

func (s *Store) ReplaceEmailVerificationRequest(ctx context.Context, r store.EmailVerificationRequest) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM email_verification_request WHERE user_id = ?`), r.UserID); err != nil {
			return unavailable(err)
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO email_verification_request (id, user_id, email, code, expires_at) VALUES (?, ?, ?, ?, ?)`),
			r.ID, r.UserID, r.Email, r.Code, unix(r.ExpiresAt))
		return classify(err)
	})
}

func (s *Store) GetUserEmailVerificationRequest(ctx context.Context, userID int64, id string) (*store.EmailVerificationRequest, error) {
	var row verificationRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT id, user_id, email, code, expires_at FROM email_verification_request WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return nil, classify(err)
	}
	return &store.EmailVerificationRequest{
		ID:        row.ID,
		UserID:    row.UserID,
		Email:     row.Email,
		Code:      row.Code,
		ExpiresAt: fromUnix(row.ExpiresAt),
	}, nil
}

func (s *Store) DeleteUserEmailVerificationRequests(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM email_verification_request WHERE user_id = ?`), userID)
	return classify(err)
}
