package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

var newUUIDv7 = uuid.NewV7

// GenerateUUIDv7 generates a new UUID v7
func GenerateUUIDv7() uuid.UUID {
	id, err := newUUIDv7()
	if err != nil {
		// Fallback to v4 if v7 fails (highly unlikely)
		return uuid.New()
	}
	return id
}

// PrefixedID returns prefix followed by the first n hex characters of a
// random UUID, e.g. "T-1a2b3c4d".
func PrefixedID(prefix string, n int) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n <= 0 || n > len(raw) {
		n = len(raw)
	}
	return prefix + raw[:n]
}

// RandomDigits returns prefix followed by a random decimal number with
// exactly n digits (no leading zero).
func RandomDigits(prefix string, n int) string {
	if n <= 0 {
		return prefix
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	v, err := rand.Int(rand.Reader, span)
	if err != nil {
		v = big.NewInt(0)
	}
	return fmt.Sprintf("%s%s", prefix, v.Add(v, low).String())
}
