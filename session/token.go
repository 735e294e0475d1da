package session

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/MrEthical07/authgate/internal"
)

// GenerateToken returns a new bearer token: 20 random bytes as lowercase
// unpadded base32.
func GenerateToken() (string, error) {
	return internal.NewToken()
}

// HashToken derives the stored id of a token. Only this value is persisted,
// so a database leak does not reveal usable tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
