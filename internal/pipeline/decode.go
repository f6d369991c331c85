package pipeline

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// decodePart turns a MIME part's raw payload into text, honoring the
// declared charset when it's one the IANA index recognizes and otherwise
// falling back to UTF-8 with lossy replacement of invalid sequences
// (spec.md §4.5 step 2).
func decodePart(part Part) string {
	charset := strings.TrimSpace(strings.ToLower(part.Charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" || charset == "us-ascii" {
		return strings.ToValidUTF8(string(part.Payload), "�")
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return strings.ToValidUTF8(string(part.Payload), "�")
	}

	reader := transform.NewReader(strings.NewReader(string(part.Payload)), enc.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return strings.ToValidUTF8(string(part.Payload), "�")
	}
	return strings.ToValidUTF8(string(decoded), "�")
}
