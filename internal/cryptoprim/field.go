// Package cryptoprim implements the authenticated field cipher and the
// deterministic token MAC that together let the mailstore answer searches
// without ever persisting plaintext.
package cryptoprim

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

// ErrAuthFailed is returned when a ciphertext fails authentication, i.e. it
// was tampered with or encrypted under a different key.
var ErrAuthFailed = errors.New("cryptoprim: message authentication failed")

const (
	keySize   = 32
	nonceSize = 24
)

// FieldCipher encrypts and decrypts message field values under a single
// 32-byte key (K_f in the spec). Each call to Encrypt uses a fresh random
// nonce; the nonce is stored alongside the box, not derived from content, so
// encrypting the same plaintext twice never yields the same ciphertext.
type FieldCipher struct {
	key [keySize]byte
}

// NewFieldCipher builds a FieldCipher from a 32-byte key.
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != keySize {
		return nil, errors.New("cryptoprim: field key must be 32 bytes")
	}
	fc := &FieldCipher{}
	copy(fc.key[:], key)
	return fc, nil
}

// Encrypt seals plaintext and returns nonce‖box.
func (c *FieldCipher) Encrypt(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+secretbox.Overhead)
	copy(out, nonce[:])
	out = secretbox.Seal(out, []byte(plaintext), &nonce, &c.key)
	return out, nil
}

// Decrypt opens a nonce‖box blob produced by Encrypt. Returns ErrAuthFailed
// if the blob is truncated or the MAC does not verify.
func (c *FieldCipher) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) < nonceSize {
		return "", ErrAuthFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrAuthFailed
	}
	return string(plaintext), nil
}
