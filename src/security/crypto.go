package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

var errCiphertextTooShort = errors.New("ciphertext too short")

func loadKey() ([32]byte, error) {
	var key [32]byte

	raw, err := base64.StdEncoding.DecodeString(GetConfig().BrokerCRKey)
	if err != nil {
		return key, fmt.Errorf("broker credentials key is not valid base64: %w", err)
	}
	if len(raw) != 32 {
		return key, fmt.Errorf("broker credentials key must decode to 32 bytes, got %d", len(raw))
	}

	copy(key[:], raw)
	return key, nil
}

// EncryptString seals a plaintext with secretbox under the configured key.
// Output is base64(nonce || ciphertext).
func EncryptString(plaintext string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString. A wrong key or tampered payload fails
// authentication and returns an error.
func DecryptString(encoded string) (string, error) {
	key, err := loadKey()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}
	if len(raw) < 24 {
		return "", errCiphertextTooShort
	}

	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &key)
	if !ok {
		return "", errors.New("decryption failed: wrong key or corrupted payload")
	}

	return string(plaintext), nil
}
