package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"
)

func (s *Store) GetTOTPKey(ctx context.Context, userID int64) ([]byte, error) {
	var key []byte
	if err := s.db.GetContext(ctx, &key, s.q(`SELECT encrypted_key FROM totp_credential WHERE user_id = ?`), userID); err != nil {
		return nil, classify(err)
	}
	return key, nil
}

func (s *Store) ReplaceTOTPKey(ctx context.Context, userID int64, key []byte) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM totp_credential WHERE user_id = ?`), userID); err != nil {
			return unavailable(err)
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO totp_credential (user_id, encrypted_key) VALUES (?, ?)`), userID, key)
		return classify(err)
	})
}

func (s *Store) DeleteTOTPKey(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM totp_credential WHERE user_id = ?`), userID)
	return classify(err)
}
