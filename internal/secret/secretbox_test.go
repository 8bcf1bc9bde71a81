package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretboxProvider_RoundTripArgs(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	p := NewSecretboxProvider(key)

	encrypted, err := p.EncryptArgs([]string{"--token=abc123", "--verbose"})
	require.NoError(t, err)
	assert.NotEqual(t, "--token=abc123", encrypted[0])

	decrypted, err := p.DecryptArgs(encrypted)
	require.NoError(t, err)
	assert.Equal(t, []string{"--token=abc123", "--verbose"}, decrypted)
}

func TestSecretboxProvider_RoundTripEnv(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	p := NewSecretboxProvider(key)

	encrypted, err := p.EncryptEnv(map[string]string{"API_KEY": "secret-value"})
	require.NoError(t, err)
	assert.NotEqual(t, "secret-value", encrypted["API_KEY"])

	decrypted, err := p.DecryptEnv(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "secret-value", decrypted["API_KEY"])
}

func TestSecretboxProvider_DecryptPlaintextPassesThrough(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	p := NewSecretboxProvider(key)

	decrypted, err := p.DecryptArgs([]string{"already-plaintext"})
	require.NoError(t, err)
	assert.Equal(t, []string{"already-plaintext"}, decrypted)
}

func TestSecretboxProvider_DifferentKeysCannotDecrypt(t *testing.T) {
	key1, _ := NewKey()
	key2, _ := NewKey()
	p1 := NewSecretboxProvider(key1)
	p2 := NewSecretboxProvider(key2)

	encrypted, err := p1.EncryptEnv(map[string]string{"FOO": "bar"})
	require.NoError(t, err)

	decrypted, err := p2.DecryptEnv(encrypted)
	require.NoError(t, err)
	// Wrong key fails to unseal, falls back to treating the ciphertext as
	// opaque plaintext rather than erroring.
	assert.NotEqual(t, "bar", decrypted["FOO"])
}
