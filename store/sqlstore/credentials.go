package sqlstore

import (
	"context"
	"fmt"

	"github.com/MrEthical07/authgate/store"
	"github.com/jmoiron/sqlx"
)

type credentialRow struct {
	ID        []byte `db:"id"`
	UserID    int64  `db:"user_id"`
	Name      string `db:"name"`
	Algorithm int    `db:"algorithm"`
	PublicKey []byte `db:"public_key"`
}

func (r credentialRow) credential() store.WebAuthnCredential {
	return store.WebAuthnCredential{ID: r.ID, UserID: r.UserID, Name: r.Name, Algorithm: r.Algorithm, PublicKey: r.PublicKey}
}

func credentialTable(kind store.CredentialKind) (string, error) {
	switch kind {
	case store.Passkey:
		return "passkey_credential", nil
	case store.SecurityKey:
		return "security_key_credential", nil
	default:
		return "", fmt.Errorf("sqlstore: unknown credential kind %d", kind)
	}
}

func (s *Store) ListCredentials(ctx context.Context, kind store.CredentialKind, userID int64) ([]store.WebAuthnCredential, error) {
	table, err := credentialTable(kind)
	if err != nil {
		return nil, err
	}
	var rows []credentialRow
	if err := s.db.SelectContext(ctx, &rows, s.q(`SELECT id, user_id, name, algorithm, public_key FROM `+table+` WHERE user_id = ? ORDER BY name`), userID); err != nil {
		return nil, classify(err)
	}
	out := make([]store.WebAuthnCredential, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.credential())
	}
	return out, nil
}

func (s *Store) GetCredential(ctx context.Context, kind store.CredentialKind, userID int64, credentialID []byte) (*store.WebAuthnCredential, error) {
	table, err := credentialTable(kind)
	if err != nil {
		return nil, err
	}
	var row credentialRow
	if err := s.db.GetContext(ctx, &row, s.q(`SELECT id, user_id, name, algorithm, public_key FROM `+table+` WHERE id = ? AND user_id = ?`), credentialID, userID); err != nil {
		return nil, classify(err)
	}
	c := row.credential()
	return &c, nil
}

func (s *Store) CreateCredential(ctx context.Context, kind store.CredentialKind, c store.WebAuthnCredential, limit int) error {
	table, err := credentialTable(kind)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if limit > 0 {
			if s.postgres {
				// Serializes concurrent registrations for the same user.
				if _, err := tx.ExecContext(ctx, `SELECT id FROM auth_user WHERE id = $1 FOR UPDATE`, c.UserID); err != nil {
					return unavailable(err)
				}
			}
			var n int
			if err := tx.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM `+table+` WHERE user_id = ?`), c.UserID); err != nil {
				return unavailable(err)
			}
			if n >= limit {
				return store.ErrCredentialLimit
			}
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO `+table+` (id, user_id, name, algorithm, public_key) VALUES (?, ?, ?, ?, ?)`),
			c.ID, c.UserID, c.Name, c.Algorithm, c.PublicKey)
		return classify(err)
	})
}

func (s *Store) DeleteCredential(ctx context.Context, kind store.CredentialKind, userID int64, credentialID []byte) (bool, error) {
	table, err := credentialTable(kind)
	if err != nil {
		return false, err
	}
	return execAffected(s.db.ExecContext(ctx, s.q(`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`), credentialID, userID))
}
