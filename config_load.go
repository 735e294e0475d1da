package authgate

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// LoadConfigFile decodes a TOML file over the defaults. Keys absent from the
// file keep their default values; unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	cfg := defaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("authgate: read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("authgate: unknown config key %q in %s", undecoded[0].String(), path)
	}
	return cfg, nil
}

// ConfigFromEnv loads .env when present and overlays environment variables
// on top of base. Recognised variables:
//
//	AUTH_RP_ID, AUTH_ORIGIN, AUTH_ENCRYPTION_KEY, AUTH_PRODUCTION,
//	AUTH_RATE_LIMIT_BACKEND, AUTH_SNOWFLAKE_NODE, AUTH_CHECK_PWNED,
//	DATABASE_DRIVER, DATABASE_URL, DATABASE_MAX_CONNS,
//	REDIS_URL, LOG_LEVEL, LOG_DEV
func ConfigFromEnv(base Config) (Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := cloneConfig(base)
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) error {
		v, ok := os.LookupEnv(key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("authgate: invalid %s: %q", key, v)
		}
		*dst = b
		return nil
	}

	setString("AUTH_RP_ID", &cfg.WebAuthn.RPID)
	setString("AUTH_ORIGIN", &cfg.WebAuthn.Origin)
	setString("AUTH_ENCRYPTION_KEY", &cfg.Security.EncryptionKey)
	setString("AUTH_RATE_LIMIT_BACKEND", &cfg.RateLimit.Backend)
	setString("DATABASE_DRIVER", &cfg.Database.Driver)
	setString("DATABASE_URL", &cfg.Database.DSN)
	setString("REDIS_URL", &cfg.Redis.URL)
	setString("LOG_LEVEL", &cfg.Log.Level)

	if err := setBool("AUTH_PRODUCTION", &cfg.Security.ProductionMode); err != nil {
		return Config{}, err
	}
	if err := setBool("AUTH_CHECK_PWNED", &cfg.Password.CheckPwned); err != nil {
		return Config{}, err
	}
	// LOG_DEV follows the "1" convention of the logging setup.
	if v, ok := os.LookupEnv("LOG_DEV"); ok {
		cfg.Log.Dev = v == "1" || v == "true"
	}

	if v, ok := os.LookupEnv("AUTH_SNOWFLAKE_NODE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("authgate: invalid AUTH_SNOWFLAKE_NODE: %q", v)
		}
		cfg.IDs.SnowflakeNode = n
	}
	if v, ok := os.LookupEnv("DATABASE_MAX_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("authgate: invalid DATABASE_MAX_CONNS: %q", v)
		}
		cfg.Database.MaxConnections = n
	}
	if v, ok := os.LookupEnv("DATABASE_CONNECT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("authgate: invalid DATABASE_CONNECT_TIMEOUT: %q", v)
		}
		cfg.Database.ConnectTimeout = d
	}

	return cfg, nil
}
