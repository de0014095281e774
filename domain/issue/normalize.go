package issue

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// MaxCanonicalBytes bounds the canonical text fed to the embedding provider.
// Oversized discussions are truncated, not rejected; the fingerprint is
// computed over the truncated text so truncation-stable content is not
// re-embedded.
const MaxCanonicalBytes = 12288

// CanonicalText builds the deterministic text representation of an issue:
// title, body, and comment bodies concatenated in fixed order with fixed
// separators, outer whitespace trimmed. Pure function; the same issue state
// always yields the same string.
func CanonicalText(i Issue) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(i.title)
	b.WriteString("\nBody: ")
	b.WriteString(i.body)
	b.WriteString("\nComments: ")
	b.WriteString(strings.Join(i.comments, " "))

	text := strings.TrimSpace(b.String())
	if len(text) > MaxCanonicalBytes {
		// Back off to a rune boundary so the cut never produces invalid UTF-8.
		cut := MaxCanonicalBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// Fingerprint returns the hex SHA-256 digest of the issue's canonical text.
// Any change to title, body, or comment set changes the fingerprint.
func Fingerprint(i Issue) string {
	sum := sha256.Sum256([]byte(CanonicalText(i)))
	return hex.EncodeToString(sum[:])
}
