package authgate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/internal/limiters"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/store/sqlstore"
	"github.com/MrEthical07/authgate/twofactor"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// treat the value as immutable once handed to the Builder.
type Config struct {
	Session           SessionConfig           `toml:"session"`
	PasswordReset     PasswordResetConfig     `toml:"password_reset"`
	EmailVerification EmailVerificationConfig `toml:"email_verification"`
	TOTP              TOTPConfig              `toml:"totp"`
	WebAuthn          WebAuthnConfig          `toml:"webauthn"`
	Password          PasswordConfig          `toml:"password"`
	RateLimit         RateLimitConfig         `toml:"rate_limit"`
	Audit             AuditConfig             `toml:"audit"`
	Metrics           MetricsConfig           `toml:"metrics"`
	Security          SecurityConfig          `toml:"security"`
	Database          DatabaseConfig          `toml:"database"`
	Redis             RedisConfig             `toml:"redis"`
	Log               LogConfig               `toml:"log"`
	IDs               IDConfig                `toml:"ids"`
	Paths             PathsConfig             `toml:"paths"`
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	Lifetime      time.Duration `toml:"lifetime"`
	RefreshWindow time.Duration `toml:"refresh_window"`
}

type PasswordResetConfig struct {
	Lifetime   time.Duration `toml:"lifetime"`
	CodeDigits int           `toml:"code_digits"`
}

type EmailVerificationConfig struct {
	Lifetime   time.Duration `toml:"lifetime"`
	CodeDigits int           `toml:"code_digits"`
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

type TOTPConfig struct {
	Issuer string `toml:"issuer"`
	Digits int    `toml:"digits"`
	Period uint   `toml:"period"`
	// Skew is the number of periods accepted on either side of now.
	Skew     uint `toml:"skew"`
	KeyBytes int  `toml:"key_bytes"`
}

type WebAuthnConfig struct {
	RPID   string `toml:"rp_id"`
	RPName string `toml:"rp_name"`
	Origin string `toml:"origin"`

	ChallengeTTL     time.Duration `toml:"challenge_ttl"`
	ChallengeBackend string        `toml:"challenge_backend"` // "memory" (default) or "redis"
	ChallengePrefix  string        `toml:"challenge_prefix"`

	MaxSecurityKeys int `toml:"max_security_keys"`
	// MaxPasskeys <= 0 leaves passkeys uncapped.
	MaxPasskeys int `toml:"max_passkeys"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory         uint32 `toml:"memory"` // in KB
	Time           uint32 `toml:"time"`
	Parallelism    uint8  `toml:"parallelism"`
	SaltLength     uint32 `toml:"salt_length"`
	KeyLength      uint32 `toml:"key_length"`
	UpgradeOnLogin bool   `toml:"upgrade_on_login"`

	CheckPwned   bool          `toml:"check_pwned"`
	PwnedBaseURL string        `toml:"pwned_base_url"`
	PwnedTimeout time.Duration `toml:"pwned_timeout"`
	PwnedRPS     float64       `toml:"pwned_rps"`
	PwnedBurst   int           `toml:"pwned_burst"`
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// BucketPolicy sizes one bucket. Period is the refill interval of refilling
// buckets and the window of expiring buckets.
type BucketPolicy struct {
	Max    int64         `toml:"max"`
	Period time.Duration `toml:"period"`
}

type RateLimitConfig struct {
	Backend     string `toml:"backend"` // "memory" (default) or "redis"
	RedisPrefix string `toml:"redis_prefix"`

	LoginIP             BucketPolicy `toml:"login_ip"`
	SignupIP            BucketPolicy `toml:"signup_ip"`
	ForgotPasswordIP    BucketPolicy `toml:"forgot_password_ip"`
	ForgotPasswordUser  BucketPolicy `toml:"forgot_password_user"`
	WebAuthnChallengeIP BucketPolicy `toml:"webauthn_challenge_ip"`
	TOTPUpdate          BucketPolicy `toml:"totp_update"`

	TOTP                  BucketPolicy `toml:"totp"`
	RecoveryCode          BucketPolicy `toml:"recovery_code"`
	VerifyEmail           BucketPolicy `toml:"verify_email"`
	SendVerificationEmail BucketPolicy `toml:"send_verification_email"`
	VerifyResetEmail      BucketPolicy `toml:"verify_reset_email"`
	PasswordUpdate        BucketPolicy `toml:"password_update"`

	LoginThrottle     []time.Duration `toml:"login_throttle"`
	ThrottleRetention time.Duration   `toml:"throttle_retention"`

	// SweepInterval controls the background cleanup of in-memory state.
	// Zero disables the sweeper.
	SweepInterval time.Duration `toml:"sweep_interval"`
}

/*
====================================
AMBIENT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `toml:"enabled"`
	BufferSize int  `toml:"buffer_size"`
	DropIfFull bool `toml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool `toml:"enabled"`
	EnableLatencyHistograms bool `toml:"enable_latency_histograms"`
}

type SecurityConfig struct {
	// ProductionMode marks every cookie Secure.
	ProductionMode bool `toml:"production_mode"`
	// EncryptionKey is the hex-encoded AES-256 key protecting TOTP keys and
	// recovery codes at rest.
	EncryptionKey string `toml:"encryption_key"`
}

type DatabaseConfig struct {
	Driver         string        `toml:"driver"` // "postgres" or "sqlite"
	DSN            string        `toml:"dsn"`
	MaxConnections int           `toml:"max_connections"`
	ConnectTimeout time.Duration `toml:"connect_timeout"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

type LogConfig struct {
	Level string `toml:"level"`
	Dev   bool   `toml:"dev"`
}

type IDConfig struct {
	// SnowflakeNode identifies this process in generated user ids (0-1023).
	SnowflakeNode int64 `toml:"snowflake_node"`
}

// PathsConfig overrides the redirect targets of the two-factor gate. Empty
// fields keep the defaults.
type PathsConfig struct {
	Passkey     string `toml:"passkey"`
	SecurityKey string `toml:"security_key"`
	TOTP        string `toml:"totp"`
	Setup       string `toml:"setup"`

	ResetPasskey     string `toml:"reset_passkey"`
	ResetSecurityKey string `toml:"reset_security_key"`
	ResetTOTP        string `toml:"reset_totp"`
	ResetSetup       string `toml:"reset_setup"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration every field of which matches the
// documented behavior. Security.EncryptionKey and WebAuthn RP settings must
// still be provided.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	argon := password.DefaultConfig()
	pwned := password.DefaultPwnedConfig()
	return Config{
		Session: SessionConfig{
			Lifetime:      30 * 24 * time.Hour,
			RefreshWindow: 15 * 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			Lifetime:   10 * time.Minute,
			CodeDigits: 8,
		},
		EmailVerification: EmailVerificationConfig{
			Lifetime:   10 * time.Minute,
			CodeDigits: 8,
		},
		TOTP: TOTPConfig{
			Issuer:   "authgate",
			Digits:   6,
			Period:   30,
			Skew:     0,
			KeyBytes: 20,
		},
		WebAuthn: WebAuthnConfig{
			RPName:           "authgate",
			ChallengeTTL:     5 * time.Minute,
			ChallengeBackend: "memory",
			MaxSecurityKeys:  5,
		},
		Password: PasswordConfig{
			Memory:         argon.Memory,
			Time:           argon.Time,
			Parallelism:    argon.Parallelism,
			SaltLength:     argon.SaltLength,
			KeyLength:      argon.KeyLength,
			UpgradeOnLogin: true,
			CheckPwned:     false,
			PwnedBaseURL:   pwned.BaseURL,
			PwnedTimeout:   pwned.Timeout,
			PwnedRPS:       pwned.RequestsPerSecond,
			PwnedBurst:     pwned.Burst,
		},
		RateLimit: RateLimitConfig{
			Backend:     limiters.BackendMemory,
			RedisPrefix: "authgate:rl",

			LoginIP:             BucketPolicy{Max: 20, Period: time.Second},
			SignupIP:            BucketPolicy{Max: 3, Period: 10 * time.Second},
			ForgotPasswordIP:    BucketPolicy{Max: 3, Period: 60 * time.Second},
			ForgotPasswordUser:  BucketPolicy{Max: 3, Period: 60 * time.Second},
			WebAuthnChallengeIP: BucketPolicy{Max: 30, Period: 10 * time.Second},
			TOTPUpdate:          BucketPolicy{Max: 3, Period: 10 * time.Minute},

			TOTP:                  BucketPolicy{Max: 5, Period: 30 * time.Minute},
			RecoveryCode:          BucketPolicy{Max: 3, Period: time.Hour},
			VerifyEmail:           BucketPolicy{Max: 5, Period: 30 * time.Minute},
			SendVerificationEmail: BucketPolicy{Max: 3, Period: 10 * time.Minute},
			VerifyResetEmail:      BucketPolicy{Max: 5, Period: 30 * time.Minute},
			PasswordUpdate:        BucketPolicy{Max: 5, Period: 30 * time.Minute},

			LoginThrottle: []time.Duration{
				0, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
				16 * time.Second, 30 * time.Second, time.Minute, 3 * time.Minute, 5 * time.Minute,
			},
			ThrottleRetention: time.Hour,
			SweepInterval:     time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Security: SecurityConfig{
			ProductionMode: false,
		},
		Database: DatabaseConfig{
			Driver:         sqlstore.DriverPostgres,
			MaxConnections: 25,
			ConnectTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.RateLimit.LoginThrottle != nil {
		out.RateLimit.LoginThrottle = append([]time.Duration(nil), cfg.RateLimit.LoginThrottle...)
	}
	return out
}

/*
====================================
DERIVED CONFIG
====================================
*/

func (c *Config) limiterConfig() limiters.Config {
	p := func(b BucketPolicy) limiters.Policy { return limiters.Policy{Max: b.Max, Period: b.Period} }
	rl := c.RateLimit
	return limiters.Config{
		Backend:               rl.Backend,
		RedisPrefix:           rl.RedisPrefix,
		LoginIP:               p(rl.LoginIP),
		SignupIP:              p(rl.SignupIP),
		ForgotPasswordIP:      p(rl.ForgotPasswordIP),
		ForgotPasswordUser:    p(rl.ForgotPasswordUser),
		WebAuthnChallengeIP:   p(rl.WebAuthnChallengeIP),
		TOTPUpdate:            p(rl.TOTPUpdate),
		TOTP:                  p(rl.TOTP),
		RecoveryCode:          p(rl.RecoveryCode),
		VerifyEmail:           p(rl.VerifyEmail),
		SendVerificationEmail: p(rl.SendVerificationEmail),
		VerifyResetEmail:      p(rl.VerifyResetEmail),
		PasswordUpdate:        p(rl.PasswordUpdate),
		LoginThrottle:         rl.LoginThrottle,
		ThrottleRetention:     rl.ThrottleRetention,
	}
}

func (c *Config) argon2Config() password.Config {
	return password.Config{
		Memory:      c.Password.Memory,
		Time:        c.Password.Time,
		Parallelism: c.Password.Parallelism,
		SaltLength:  c.Password.SaltLength,
		KeyLength:   c.Password.KeyLength,
	}
}

func (c *Config) pwnedConfig() password.PwnedConfig {
	return password.PwnedConfig{
		BaseURL:           c.Password.PwnedBaseURL,
		Timeout:           c.Password.PwnedTimeout,
		RequestsPerSecond: c.Password.PwnedRPS,
		Burst:             c.Password.PwnedBurst,
	}
}

func (c *Config) gatePaths() (twofactor.Paths, twofactor.Paths) {
	p := c.Paths
	return twofactor.Paths{
			Passkey:     p.Passkey,
			SecurityKey: p.SecurityKey,
			TOTP:        p.TOTP,
			Setup:       p.Setup,
		}, twofactor.Paths{
			Passkey:     p.ResetPasskey,
			SecurityKey: p.ResetSecurityKey,
			TOTP:        p.ResetTOTP,
			Setup:       p.ResetSetup,
		}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	// Session
	if c.Session.Lifetime <= 0 {
		return errors.New("Session Lifetime must be > 0")
	}
	if c.Session.RefreshWindow <= 0 || c.Session.RefreshWindow > c.Session.Lifetime {
		return errors.New("Session RefreshWindow must be > 0 and <= Lifetime")
	}

	// Password reset / email verification
	if c.PasswordReset.Lifetime <= 0 {
		return errors.New("PasswordReset Lifetime must be > 0")
	}
	if c.PasswordReset.CodeDigits < 6 || c.PasswordReset.CodeDigits > 10 {
		return errors.New("PasswordReset CodeDigits must be between 6 and 10")
	}
	if c.EmailVerification.Lifetime <= 0 {
		return errors.New("EmailVerification Lifetime must be > 0")
	}
	if c.EmailVerification.CodeDigits < 6 || c.EmailVerification.CodeDigits > 10 {
		return errors.New("EmailVerification CodeDigits must be between 6 and 10")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period == 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.KeyBytes < 16 {
		return errors.New("TOTP KeyBytes must be >= 16")
	}

	// WebAuthn
	if c.WebAuthn.RPID == "" {
		return errors.New("WebAuthn RPID is required")
	}
	origin, err := url.Parse(c.WebAuthn.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return errors.New("WebAuthn Origin must be an absolute URL")
	}
	host := origin.Hostname()
	if host != c.WebAuthn.RPID && !strings.HasSuffix(host, "."+c.WebAuthn.RPID) {
		return errors.New("WebAuthn Origin host must equal or be a subdomain of RPID")
	}
	if c.WebAuthn.ChallengeTTL <= 0 {
		return errors.New("WebAuthn ChallengeTTL must be > 0")
	}
	switch c.WebAuthn.ChallengeBackend {
	case "", "memory", "redis":
	default:
		return errors.New("WebAuthn ChallengeBackend must be 'memory' or 'redis'")
	}
	if c.WebAuthn.MaxSecurityKeys <= 0 {
		return errors.New("WebAuthn MaxSecurityKeys must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.CheckPwned && c.Password.PwnedBaseURL == "" {
		return errors.New("Password PwnedBaseURL is required when CheckPwned is true")
	}

	// Rate limits
	switch c.RateLimit.Backend {
	case "", limiters.BackendMemory, limiters.BackendRedis:
	default:
		return errors.New("RateLimit Backend must be 'memory' or 'redis'")
	}
	for name, p := range map[string]BucketPolicy{
		"LoginIP":               c.RateLimit.LoginIP,
		"SignupIP":              c.RateLimit.SignupIP,
		"ForgotPasswordIP":      c.RateLimit.ForgotPasswordIP,
		"ForgotPasswordUser":    c.RateLimit.ForgotPasswordUser,
		"WebAuthnChallengeIP":   c.RateLimit.WebAuthnChallengeIP,
		"TOTPUpdate":            c.RateLimit.TOTPUpdate,
		"TOTP":                  c.RateLimit.TOTP,
		"RecoveryCode":          c.RateLimit.RecoveryCode,
		"VerifyEmail":           c.RateLimit.VerifyEmail,
		"SendVerificationEmail": c.RateLimit.SendVerificationEmail,
		"VerifyResetEmail":      c.RateLimit.VerifyResetEmail,
		"PasswordUpdate":        c.RateLimit.PasswordUpdate,
	} {
		if p.Max <= 0 || p.Period <= 0 {
			return fmt.Errorf("RateLimit %s must have Max > 0 and Period > 0", name)
		}
	}
	if len(c.RateLimit.LoginThrottle) == 0 {
		return errors.New("RateLimit LoginThrottle must not be empty")
	}
	for _, d := range c.RateLimit.LoginThrottle {
		if d < 0 {
			return errors.New("RateLimit LoginThrottle delays must be >= 0")
		}
	}
	if c.RateLimit.SweepInterval < 0 {
		return errors.New("RateLimit SweepInterval must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Security
	if len(c.Security.EncryptionKey) != 64 {
		return errors.New("Security EncryptionKey must be 64 hex characters")
	}

	// IDs
	if c.IDs.SnowflakeNode < 0 || c.IDs.SnowflakeNode > 1023 {
		return errors.New("IDs SnowflakeNode must be between 0 and 1023")
	}

	return nil
}
