package registry

import (
	"strings"
	"unicode"
)

// Slug turns a display name into a URL-safe key: lower-case, every
// non-alphanumeric rune replaced by a hyphen, runs of hyphens collapsed and
// leading or trailing hyphens trimmed. An empty result becomes "site".
func Slug(name string) string {
	var sb strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			sb.WriteByte('-')
			lastHyphen = true
		}
	}

	s := strings.Trim(sb.String(), "-")
	if s == "" {
		return "site"
	}
	return s
}

// ExtractDomain returns the bare lower-case hostname of a display string or
// URL: the scheme and a leading "www." are removed and everything from the
// first '/', '?' or '#' is dropped.
func ExtractDomain(display string) string {
	s := strings.ToLower(strings.TrimSpace(display))
	for _, prefix := range []string{"http://", "https://"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			s = rest
			break
		}
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
