package cryptography

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyNotificationSignature(t *testing.T) {
	sig := NotificationSignature("ORD-1", "200", "150000.00", "server-key")

	// deterministic for identical inputs
	assert.Equal(t, sig, NotificationSignature("ORD-1", "200", "150000.00", "server-key"))
	assert.True(t, VerifyNotificationSignature("ORD-1", "200", "150000.00", sig, "server-key"))

	// a tampered gross amount with an unchanged signature must fail
	assert.False(t, VerifyNotificationSignature("ORD-1", "200", "999999.00", sig, "server-key"))
	// so must a wrong key
	assert.False(t, VerifyNotificationSignature("ORD-1", "200", "150000.00", sig, "other-key"))
	// and an empty supplied signature
	assert.False(t, VerifyNotificationSignature("ORD-1", "200", "150000.00", "", "server-key"))
}

func TestRandomToken(t *testing.T) {
	one, err := RandomToken()
	assert.NoError(t, err)
	two, err := RandomToken()
	assert.NoError(t, err)

	assert.NotEmpty(t, one)
	assert.NotEqual(t, one, two)
}
