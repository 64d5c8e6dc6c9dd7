// Package fingerprint derives stable cache keys from text.
//
// Identical text always yields the identical fingerprint; the fingerprint is
// a collision-resistant hash, so distinct texts never share one in practice.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Text returns the fingerprint of s after normalization.
//
// Normalization lowercases the text and collapses runs of whitespace to a
// single space, so cosmetic reformatting of a sentence does not defeat the
// embedding cache.
func Text(s string) string {
	return Raw(Normalize(s))
}

// Raw returns the fingerprint of s without normalization.
func Raw(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Normalize lowercases s, trims it, and collapses internal whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
