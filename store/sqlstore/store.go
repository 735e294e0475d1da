package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authgate/store"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
)

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// Store implements store.Store.
type Store struct {
	db       *sqlx.DB
	postgres bool
}

var _ store.Store = (*Store)(nil)

// New wraps an open handle. The dialect is taken from the handle's driver name.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, postgres: db.DriverName() == DriverPostgres}
}

// DB exposes the underlying handle for callers that share it.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) q(query string) string { return s.db.Rebind(query) }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// classify maps driver errors onto store sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case isUniqueViolation(err):
		return store.ErrDuplicate
	default:
		return unavailable(err)
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
	}
	return false
}

func execAffected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

func mustAffect(res sql.Result, err error) error {
	ok, err := execAffected(res, err)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on any error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func unix(t time.Time) int64 { return t.Unix() }

func fromUnix(sec int64) time.Time { return time.Unix(sec, 0) }

const userColumns = `u.id, u.email, u.username, u.name, u.email_verified,
	EXISTS(SELECT 1 FROM totp_credential t WHERE t.user_id = u.id) AS registered_totp,
	EXISTS(SELECT 1 FROM passkey_credential p WHERE p.user_id = u.id) AS registered_passkey,
	EXISTS(SELECT 1 FROM security_key_credential k WHERE k.user_id = u.id) AS registered_security_key`

type userRow struct {
	ID                    int64  `db:"id"`
	Email                 string `db:"email"`
	Username              string `db:"username"`
	Name                  string `db:"name"`
	EmailVerified         bool   `db:"email_verified"`
	RegisteredTOTP        bool   `db:"registered_totp"`
	RegisteredPasskey     bool   `db:"registered_passkey"`
	RegisteredSecurityKey bool   `db:"registered_security_key"`
}

func (r userRow) user() *store.User {
	return &store.User{
		ID:                    r.ID,
		Email:                 r.Email,
		Username:              r.Username,
		Name:                  r.Name,
		EmailVerified:         r.EmailVerified,
		RegisteredTOTP:        r.RegisteredTOTP,
		RegisteredPasskey:     r.RegisteredPasskey,
		RegisteredSecurityKey: r.RegisteredSecurityKey,
	}
}
