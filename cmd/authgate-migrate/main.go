// Command authgate-migrate creates the authgate tables in the configured
// database. It is safe to run repeatedly.
//
// Configuration comes from an optional TOML file, then the environment
// (DATABASE_DRIVER, DATABASE_URL, ...), then the flags below.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/store/sqlstore"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional TOML config file")
		driver     = flag.String("driver", "", "database driver: postgres or sqlite")
		dsn        = flag.String("dsn", "", "database connection string")
		timeout    = flag.Duration("timeout", time.Minute, "overall migration timeout")
		check      = flag.Bool("check", false, "only verify connectivity")
	)
	flag.Parse()

	if err := run(*configPath, *driver, *dsn, *timeout, *check); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, driver, dsn string, timeout time.Duration, check bool) error {
	cfg := authgate.DefaultConfig()
	if configPath != "" {
		loaded, err := authgate.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg, err := authgate.ConfigFromEnv(cfg)
	if err != nil {
		return err
	}
	if driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn != "" {
		cfg.Database.DSN = dsn
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("no database configured: set DATABASE_URL or -dsn")
	}

	logger, err := authgate.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:         cfg.Database.Driver,
		DSN:            cfg.Database.DSN,
		MaxConns:       1,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	log := logger.With(zap.String("driver", cfg.Database.Driver))
	if check {
		log.Info("database reachable")
		return nil
	}

	start := time.Now()
	if err := sqlstore.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info("schema up to date", zap.Duration("took", time.Since(start)))
	return nil
}
