package utils

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := Encrypt([]byte("super-secret-token"), testKey)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "super-secret-token")

	decrypted, err := Decrypt(encrypted, testKey)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-token", decrypted)
}

func TestEncryptOutputIsHex(t *testing.T) {
	encrypted, err := Encrypt([]byte("token"), testKey)
	require.NoError(t, err)

	raw, err := hex.DecodeString(encrypted)
	require.NoError(t, err, "stored form must be pure hex")
	// 12-byte GCM nonce precedes the ciphertext.
	assert.Greater(t, len(raw), 12)
}

func TestEncryptProducesUniqueNonces(t *testing.T) {
	first, err := Encrypt([]byte("token"), testKey)
	require.NoError(t, err)
	second, err := Encrypt([]byte("token"), testKey)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	encrypted, err := Encrypt([]byte("token"), testKey)
	require.NoError(t, err)

	tampered := []byte(encrypted)
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}
	_, err = Decrypt(string(tampered), testKey)
	assert.Error(t, err)
}

func TestDecryptRejectsShortCiphertext(t *testing.T) {
	_, err := Decrypt("abcd", testKey)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("token"), testKey)
	require.NoError(t, err)

	otherKey := []byte("ffffffffffffffffffffffffffffffff")
	_, err = Decrypt(encrypted, otherKey)
	assert.Error(t, err)
}
