// Package sanitize cleans free-form strings that reach the run store, the
// MCP audit log, or rendered charts. It strips control characters and
// markup and bounds lengths so a caller cannot smuggle structure into
// files read later by people or agents.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxTextLength is the maximum length of sanitized free text.
const MaxTextLength = 500

// MaxIdentifierLength is the maximum length of a sanitized identifier.
const MaxIdentifierLength = 64

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reExcessiveNewlines matches 3 or more consecutive newlines.
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)

	reRepeatedHyphens     = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// Text sanitizes free text such as error messages and chart titles:
//  1. Strip null bytes and ASCII control characters (except \n, \t)
//  2. Strip XML/HTML tags
//  3. Collapse excessive newlines (3+ -> 2)
//  4. Truncate to MaxTextLength
//  5. Trim leading/trailing whitespace
func Text(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reExcessiveNewlines.ReplaceAllString(s, "\n\n")
	if len(s) > MaxTextLength {
		s = truncateRunes(s, MaxTextLength)
	}
	return strings.TrimSpace(s)
}

// Identifier keeps only [a-zA-Z0-9-_] and bounds the length. It is used for
// generator names and run ID prefixes supplied by MCP clients.
func Identifier(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")

	if len(s) > MaxIdentifierLength {
		s = s[:MaxIdentifierLength]
	}
	return s
}

// stripControlChars removes ASCII control characters (0x00-0x1F) from the string,
// except for newline (0x0A) and tab (0x09) which are preserved.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
