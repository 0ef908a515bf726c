package chain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe51296170827936ea5cce4b76994b0f"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestEncryptKeyAcceptsPrefixedHex(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.ErrorContains(t, err, "password must not be empty")

	_, err = EncryptKey("not hex", "hunter2")
	assert.ErrorContains(t, err, "invalid private key hex")

	// 16 bytes instead of 32.
	_, err = EncryptKey(strings.Repeat("ab", 16), "hunter2")
	assert.ErrorContains(t, err, "expected 32-byte key")
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestDecryptKeyRejectsUnknownVersion(t *testing.T) {
	_, err := DecryptKey([]byte(`{"version":99,"salt":"","nonce":"","ciphertext":""}`), "hunter2")
	assert.ErrorContains(t, err, "unsupported keyfile version")
}

func TestLoadKeyRawStripsPrefix(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyRawRejectsNonHex(t *testing.T) {
	_, err := LoadKey(KeyConfig{RawPrivateKey: "zz not hex"})
	assert.ErrorContains(t, err, "not valid hex")
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.ErrorContains(t, err, "no private key source configured")
}
