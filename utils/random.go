package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// RandomHex returns n random bytes hex encoded (2n characters)
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// RandomDigits returns a string of n random decimal digits, leading zeros kept
func RandomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}

// NewPublicUserID builds the human readable login id shown to admins, e.g. staff_042917
func NewPublicUserID(prefix string) (string, error) {
	digits, err := RandomDigits(6)
	if err != nil {
		return "", err
	}
	return prefix + "_" + digits, nil
}
