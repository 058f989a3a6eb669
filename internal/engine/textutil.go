package engine

import (
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent strings used across HTTP clients.
const (
	UserAgentBot    = "GoMoments/1.0"
	UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// markupRe matches opening, closing and unterminated tags.
var markupRe = regexp.MustCompile(`</?[^>]+(>|$)`)

// StripMarkup removes XML/HTML tags and keeps everything else verbatim.
func StripMarkup(s string) string {
	return markupRe.ReplaceAllString(s, "")
}

// Truncate returns the first n bytes of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// NormTerm collapses whitespace in a search term.
func NormTerm(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
