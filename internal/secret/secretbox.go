package secret

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const keySize = 32

// SecretboxProvider implements Provider with nacl/secretbox: each value is
// sealed under a single symmetric key with a fresh random nonce prepended
// to the ciphertext, then base64-encoded for storage in the YAML
// repository. A plaintext value that fails to base64-decode or unseal is
// treated as already-plaintext, so servers configured before encryption
// was enabled keep working unmodified.
type SecretboxProvider struct {
	key [keySize]byte
}

// NewSecretboxProvider builds a provider from a 32-byte key. Deployments
// generate this once (e.g. via NewKey) and hold it outside the repository
// the provider guards.
func NewSecretboxProvider(key [keySize]byte) *SecretboxProvider {
	return &SecretboxProvider{key: key}
}

// NewKey generates a fresh random 32-byte secretbox key.
func NewKey() ([keySize]byte, error) {
	var key [keySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("generate secretbox key: %w", err)
	}
	return key, nil
}

func (p *SecretboxProvider) seal(plaintext string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &p.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (p *SecretboxProvider) open(stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(raw) < 24 {
		// Not a value we sealed; treat as plaintext (pre-encryption data).
		return stored, nil
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	opened, ok := secretbox.Open(nil, raw[24:], &nonce, &p.key)
	if !ok {
		return stored, nil
	}
	return string(opened), nil
}

func (p *SecretboxProvider) DecryptArgs(stored []string) ([]string, error) {
	out := make([]string, len(stored))
	for i, v := range stored {
		plain, err := p.open(v)
		if err != nil {
			return nil, fmt.Errorf("decrypt arg %d: %w", i, err)
		}
		out[i] = plain
	}
	return out, nil
}

func (p *SecretboxProvider) DecryptEnv(stored map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(stored))
	for k, v := range stored {
		plain, err := p.open(v)
		if err != nil {
			return nil, fmt.Errorf("decrypt env %s: %w", k, err)
		}
		out[k] = plain
	}
	return out, nil
}

func (p *SecretboxProvider) EncryptArgs(plaintext []string) ([]string, error) {
	out := make([]string, len(plaintext))
	for i, v := range plaintext {
		sealed, err := p.seal(v)
		if err != nil {
			return nil, fmt.Errorf("encrypt arg %d: %w", i, err)
		}
		out[i] = sealed
	}
	return out, nil
}

func (p *SecretboxProvider) EncryptEnv(plaintext map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(plaintext))
	for k, v := range plaintext {
		sealed, err := p.seal(v)
		if err != nil {
			return nil, fmt.Errorf("encrypt env %s: %w", k, err)
		}
		out[k] = sealed
	}
	return out, nil
}
