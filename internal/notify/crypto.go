package notify

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// The SMTP password is persisted AES-256-GCM encrypted in the settings
// store; the key stays outside the database (environment or key file).

func gcmFromHexKey(keyHex string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid key hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("notify: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("notify: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("notify: gcm: %w", err)
	}
	return gcm, nil
}

// GenerateEncryptionKey returns a random 32-byte key as a 64-char hex string.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("notify: generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Encrypt encrypts plaintext with AES-256-GCM, returning
// base64(nonce + ciphertext).
func Encrypt(plaintext, keyHex string) (string, error) {
	gcm, err := gcmFromHexKey(keyHex)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("notify: nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encoded, keyHex string) (string, error) {
	gcm, err := gcmFromHexKey(keyHex)
	if err != nil {
		return "", err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("notify: invalid base64: %w", err)
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("notify: ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("notify: decrypt: %w", err)
	}
	return string(plaintext), nil
}
