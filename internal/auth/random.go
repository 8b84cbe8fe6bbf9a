package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// HashString returns a hex-encoded SHA-256 hash, used for challenge code and
// token storage so a leaked row never reveals the secret itself.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NewChallengeCode draws a 6-digit code uniformly from [000000, 999999],
// keeping leading zeros.
func NewChallengeCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// NewChallengeToken returns an opaque 64-hex-char token for emailed
// verification links.
func NewChallengeToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
