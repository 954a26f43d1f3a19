package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// GenerateNumericCode returns a uniformly random string of decimal digits.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// CodeHMAC keys a one-time code to its phone number: hex(HMAC-SHA256(key, "phone:code")).
func CodeHMAC(key, phone, code string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(phone + ":" + code))
	return hex.EncodeToString(mac.Sum(nil))
}

// CodeHMACMatches compares a stored code hash with one computed for the submitted code.
func CodeHMACMatches(stored, key, phone, code string) bool {
	return hmac.Equal([]byte(stored), []byte(CodeHMAC(key, phone, code)))
}

// CodesEqual compares two plain codes in constant time.
func CodesEqual(stored, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(submitted))) == 1
}
