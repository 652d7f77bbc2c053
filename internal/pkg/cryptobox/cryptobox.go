// Package cryptobox protects face descriptors at rest. Each blob packs
// salt || iv || authTag || ciphertext, base64-encoded, with the key derived
// per blob from a server-held secret and the embedded salt.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen = 16
	ivLen   = 12
	tagLen  = 16
	keyLen  = 32

	// Deliberately slow derivation; the secret is low-entropy relative to a raw key.
	kdfIterations = 100_000
)

// ErrDecryptionFailed signals a failed authentication tag check: the blob was
// tampered with, truncated, or encrypted under a different secret.
var ErrDecryptionFailed = errors.New("cryptobox: decryption failed")

// Box encrypts and decrypts descriptor blobs with a password-derived key.
type Box struct {
	secret []byte
}

// New creates a Box around the server-held secret.
func New(secret string) (*Box, error) {
	if secret == "" {
		return nil, errors.New("cryptobox: empty secret")
	}
	return &Box{secret: []byte(secret)}, nil
}

// Encrypt seals plaintext under a freshly salted key and a fresh iv. Two calls
// with identical plaintext never produce the same blob.
func (b *Box) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptobox: salt generation: %w", err)
	}

	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("cryptobox: iv generation: %w", err)
	}

	gcm, err := b.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal output is ciphertext||tag; the packed layout keeps the tag before
	// the ciphertext so components unpack by fixed offsets.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	ct := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	blob := make([]byte, 0, saltLen+ivLen+tagLen+len(ct))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt unpacks a blob produced by Encrypt and opens it. It never returns
// unauthenticated plaintext: any tag mismatch yields ErrDecryptionFailed.
func (b *Box) Decrypt(encoded string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed base64", ErrDecryptionFailed)
	}

	if len(blob) < saltLen+ivLen+tagLen {
		return nil, fmt.Errorf("%w: blob too short", ErrDecryptionFailed)
	}

	salt := blob[:saltLen]
	iv := blob[saltLen : saltLen+ivLen]
	tag := blob[saltLen+ivLen : saltLen+ivLen+tagLen]
	ct := blob[saltLen+ivLen+tagLen:]

	gcm, err := b.aead(salt)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ct)+tagLen)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func (b *Box) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(b.secret, salt, kdfIterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptobox: cipher init: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptobox: gcm init: %w", err)
	}

	return gcm, nil
}
