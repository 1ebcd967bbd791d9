package outputsync

import (
	"regexp"
	"strings"
	"unicode"
)

var leadingDots = regexp.MustCompile(`^\.+`)

const unsafeChars = `/\:*?"<>|`

// Slug derives the filesystem-safe document name from a conversation title:
// characters unsafe on common filesystems and control characters become
// underscores, whitespace runs collapse to a single space and leading dot
// sequences are rewritten. An empty result means the caller should fall back
// to the conversation id.
func Slug(title string) string {
	sanitized := strings.Map(func(r rune) rune {
		// whitespace control characters (tab, newline) collapse below
		// instead of turning into underscores
		if unicode.IsSpace(r) {
			return r
		}
		if r < 0x20 || strings.ContainsRune(unsafeChars, r) {
			return '_'
		}
		return r
	}, title)

	sanitized = strings.Join(strings.Fields(sanitized), " ")
	sanitized = leadingDots.ReplaceAllString(sanitized, "_")

	return sanitized
}
