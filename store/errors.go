package store

import "errors"

// Sentinel errors per spec.md §7. NotFound is deliberately not among them:
// Get/MarkRead/Delete report absence via a boolean or zero value, never an
// error, matching the spec's stated policy.
var (
	// ErrCryptoAuth wraps a CryptoError: AEAD authentication failed while
	// decrypting a row. The row is skipped from results but left on disk.
	ErrCryptoAuth = errors.New("store: crypto authentication failed")

	// ErrDuplicateID is returned by Insert/InsertWithId when the id already
	// exists.
	ErrDuplicateID = errors.New("store: duplicate id")
)
