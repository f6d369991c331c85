// Package idgen allocates the opaque, URL-safe message identifiers used
// throughout the arrival pipeline and mailstore (spec.md §4.5 step 1).
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

const idLength = 23

// New allocates a 23-character URL-safe opaque identifier: a random UUIDv4
// with its hyphens stripped and the result truncated to idLength.
func New() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(raw) < idLength {
		// uuid.NewString without hyphens is always 32 chars; this only
		// guards against a future change to the generator.
		raw = raw + raw
	}
	return raw[:idLength]
}
