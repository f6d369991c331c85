// Package tokenizer extracts normalized search tokens from message field
// text. It is pure and stateless: the same input always yields the same
// token set, on the ingest path and the query path alike, since any
// divergence between the two would silently break recall.
package tokenizer

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	// wordPattern matches runs of Unicode letters/digits/underscore rather than
	// RE2's \w, which is ASCII-only ([0-9A-Za-z_]) even though \p{L}/\p{N} are
	// Unicode-aware — plain \w would silently drop accented, CJK, and Cyrillic
	// words from the token set.
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]{3,}`)
	// fullEmailPattern anchors the email pattern to the whole string, used to
	// detect "the query is itself a single email address" fast paths.
	fullEmailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

// Tokenize maps plaintext to the union of its email tokens, word tokens, and
// ordered bigrams, per spec.md §4.2.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	if text == "" {
		return tokens
	}

	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, email := range emailPattern.FindAllString(normalized, -1) {
		tokens[email] = struct{}{}
		local, domain, ok := splitEmail(email)
		if !ok {
			continue
		}
		if len(local) >= 3 {
			tokens[local] = struct{}{}
		}
		if len(domain) >= 3 {
			tokens[domain] = struct{}{}
		}
	}

	words := wordPattern.FindAllString(normalized, -1)
	for _, w := range words {
		tokens[w] = struct{}{}
	}

	for i := 0; i+1 < len(words); i++ {
		tokens[words[i]+"_"+words[i+1]] = struct{}{}
	}

	return tokens
}

// IsFullEmail reports whether the trimmed text is, in its entirety, a single
// email address — used for the exact-email-match fast path in query
// resolution.
func IsFullEmail(text string) bool {
	return fullEmailPattern.MatchString(strings.TrimSpace(text))
}

func splitEmail(email string) (local, domain string, ok bool) {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return "", "", false
	}
	return email[:i], email[i+1:], true
}
