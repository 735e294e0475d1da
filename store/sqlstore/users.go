package sqlstore

import (
	"context"

	"github.com/MrEthical07/authgate/store"
	"github.com/jmoiron/sqlx"
)

func (s *Store) CreateUser(ctx context.Context, u store.NewUser) (*store.User, error) {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO auth_user (id, email, username, password_hash, email_verified, recovery_code)
		VALUES (?, ?, ?, ?, ?, ?)`), u.ID, u.Email, u.Username, u.PasswordHash, false, u.RecoveryCode)
	if err != nil {
		return nil, classify(err)
	}
	return &store.User{ID: u.ID, Email: u.Email, Username: u.Username}, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*store.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.q(`SELECT `+userColumns+` FROM auth_user u WHERE u.id = ?`), id); err != nil {
		return nil, classify(err)
	}
	return row.user(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.q(`SELECT `+userColumns+` FROM auth_user u WHERE u.email = ?`), email); err != nil {
		return nil, classify(err)
	}
	return row.user(), nil
}

func (s *Store) EmailAvailable(ctx context.Context, email string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM auth_user WHERE email = ?`), email); err != nil {
		return false, classify(err)
	}
	return n == 0, nil
}

func (s *Store) GetPasswordHash(ctx context.Context, userID int64) (string, error) {
	var hash string
	if err := s.db.GetContext(ctx, &hash, s.q(`SELECT password_hash FROM auth_user WHERE id = ?`), userID); err != nil {
		return "", classify(err)
	}
	return hash, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE auth_user SET password_hash = ? WHERE id = ?`), hash, userID))
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, name, username string) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE auth_user SET name = ?, username = ? WHERE id = ?`), name, username, userID))
}

func (s *Store) UpdateEmailAndVerify(ctx context.Context, userID int64, email string) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE auth_user SET email = ?, email_verified = ? WHERE id = ?`), email, true, userID))
}

func (s *Store) SetEmailVerifiedIfMatches(ctx context.Context, userID int64, email string) (bool, error) {
	return execAffected(s.db.ExecContext(ctx, s.q(`UPDATE auth_user SET email_verified = ? WHERE id = ? AND email = ?`), true, userID, email))
}

func (s *Store) GetRecoveryCode(ctx context.Context, userID int64) ([]byte, error) {
	var code []byte
	if err := s.db.GetContext(ctx, &code, s.q(`SELECT recovery_code FROM auth_user WHERE id = ?`), userID); err != nil {
		return nil, classify(err)
	}
	return code, nil
}

func (s *Store) SetRecoveryCode(ctx context.Context, userID int64, encrypted []byte) error {
	return mustAffect(s.db.ExecContext(ctx, s.q(`UPDATE auth_user SET recovery_code = ? WHERE id = ?`), encrypted, userID))
}

func (s *Store) ResetTwoFactorWithRecoveryCode(ctx context.Context, userID int64, old, replacement []byte) (bool, error) {
	var swapped bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := execAffected(tx.ExecContext(ctx, s.q(`UPDATE auth_user SET recovery_code = ? WHERE id = ? AND recovery_code = ?`), replacement, userID, old))
		if err != nil || !ok {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE auth_session SET two_factor_verified = ? WHERE user_id = ?`), false, userID); err != nil {
			return unavailable(err)
		}
		for _, table := range []string{"totp_credential", "passkey_credential", "security_key_credential"} {
			if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE user_id = ?`), userID); err != nil {
				return unavailable(err)
			}
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}
