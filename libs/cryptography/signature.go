// Package cryptography provides the signing primitives used to authenticate
// gateway callbacks and to mint checkout tokens.
package cryptography

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/shengdoushi/base58"
)

// NotificationSignature computes the keyed digest carried by gateway status
// callbacks: hex encoded SHA-512 over orderID || statusCode || grossAmount ||
// serverKey. The gross amount is the raw string form from the wire, not a
// re-rendered number.
func NotificationSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifyNotificationSignature checks a supplied signature against the expected
// keyed digest in constant time.
func VerifyNotificationSignature(orderID, statusCode, grossAmount, supplied, serverKey string) bool {
	expected := NotificationSignature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) == 1
}

// RandomToken returns a base58 encoded token from 32 bytes of system entropy,
// suitable for hosted checkout redirects.
func RandomToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to read system entropy: %w", err)
	}
	return base58.Encode(buf[:], base58.BitcoinAlphabet), nil
}
