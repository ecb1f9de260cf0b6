// Package crypto encrypts the sensitive fields of records before they
// leave the device. The account key is derived once from the user's
// passphrase and a per-account salt; field values travel as
// base64(nonce || ciphertext).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const nonceSize = 12

// Cipher performs AES-GCM field encryption under one account key.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the account key with argon2id and prepares the AEAD.
func New(passphrase, salt string) (*Cipher, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: empty passphrase")
	}
	if salt == "" {
		return nil, errors.New("crypto: empty salt")
	}
	key := argon2.IDKey([]byte(passphrase), []byte(salt), 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// EncryptField seals one field value. Callers encrypt each field exactly
// once per write.
func (c *Cipher) EncryptField(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField opens a value produced by EncryptField under the same
// account key.
func (c *Cipher) DecryptField(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode field: %w", err)
	}
	if len(raw) < nonceSize {
		return "", errors.New("crypto: field too short")
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("open field: %w", err)
	}
	return string(plain), nil
}
