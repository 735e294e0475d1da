package authgate

import (
	"encoding/base32"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/internal"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var totpEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{config: cfg}
}

func (m *totpManager) digits() otp.Digits {
	if m.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

// GenerateKey returns a fresh raw key and its otpauth:// URI for account.
func (m *totpManager) GenerateKey(account string) ([]byte, string, error) {
	raw, err := internal.NewKey(m.config.KeyBytes)
	if err != nil {
		return nil, "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: account,
		Period:      m.config.Period,
		Secret:      raw,
		Digits:      m.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, "", err
	}
	return raw, key.URL(), nil
}

// Verify checks code against key at now, accepting Skew periods either side.
func (m *totpManager) Verify(key []byte, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits {
		return false
	}
	ok, err := totp.ValidateCustom(code, totpEncoding.EncodeToString(key), now.UTC(), totp.ValidateOpts{
		Period:    m.config.Period,
		Skew:      m.config.Skew,
		Digits:    m.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
