package cryptoprim

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	tokenHashLen   = 16 // hex chars of the truncated HMAC
	pbkdf2Iters    = 100000
	tokenKeySalt   = "search_tokens"
	tokenKeySizeB  = 32
)

// DeriveTokenKey derives K_t from K_f via PBKDF2-HMAC-SHA256, exactly the
// construction spec.md mandates so that an oracle for field decryption does
// not directly expose search-token hashes.
func DeriveTokenKey(fieldKey []byte) []byte {
	return pbkdf2.Key(fieldKey, []byte(tokenKeySalt), pbkdf2Iters, tokenKeySizeB, sha256.New)
}

// TokenHasher computes deterministic, source-tagged search-token hashes.
type TokenHasher struct {
	key []byte
}

// NewTokenHasher builds a TokenHasher from a derived token key.
func NewTokenHasher(tokenKey []byte) *TokenHasher {
	key := make([]byte, len(tokenKey))
	copy(key, tokenKey)
	return &TokenHasher{key: key}
}

// Hash returns the 16-hex-character prefix of HMAC-SHA256(K_t, "source:token").
// Truncation to 64 bits trades collision resistance for compact index rows;
// false positives in the candidate set are expected and tolerated by callers.
func (h *TokenHasher) Hash(source, token string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(source))
	mac.Write([]byte(":"))
	mac.Write([]byte(token))
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum)[:tokenHashLen]
}
