package internal

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	tokenSize        = 20
	recoveryCodeSize = 10
	challengeSize    = 20
)

var (
	lowerBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)
	upperBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// NewToken returns 160 random bits encoded as lowercase unpadded base32.
func NewToken() (string, error) {
	var raw [tokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return lowerBase32.EncodeToString(raw[:]), nil
}

// NewRecoveryCode returns an uppercase base32 code with 80 bits of entropy.
func NewRecoveryCode() (string, error) {
	var raw [recoveryCodeSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return upperBase32.EncodeToString(raw[:]), nil
}

func NewChallenge() ([]byte, error) {
	raw := make([]byte, challengeSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func NewKey(size int) ([]byte, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
