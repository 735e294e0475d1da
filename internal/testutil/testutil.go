// Package testutil builds throwaway backends for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MrEthical07/authgate/store/sqlstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewStore returns a migrated SQLite store in a per-test temp directory.
func NewStore(t testing.TB) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()
	db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: sqlstore.DriverSQLite, DSN: filepath.Join(t.TempDir(), "auth.db")})
	if err != nil {
		t.Fatalf("sqlstore.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := sqlstore.Migrate(ctx, db); err != nil {
		t.Fatalf("sqlstore.Migrate() error: %v", err)
	}
	return sqlstore.New(db)
}

// NewRedis starts an in-process Redis and returns a client bound to it.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}
