package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var reservedSlugs = map[string]struct{}{
	"new":     {},
	"search":  {},
	"ratings": {},
	"admin":   {},
}

// Slugify lowercases name and joins its alphanumeric runs with hyphens.
// "Ticket to Ride: Europe" becomes "ticket-to-ride-europe".
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	s := b.String()
	if len(s) > 200 {
		s = strings.TrimRight(s[:200], "-")
	}
	return s
}

// ValidateGameSlug validates slug format and reserved names.
func ValidateGameSlug(slug string) error {
	if len(slug) < 2 || len(slug) > 200 || !slugRegex.MatchString(slug) {
		return fmt.Errorf("slug must be 2-200 characters of lowercase letters, numbers, and single hyphens")
	}
	if _, exists := reservedSlugs[slug]; exists {
		return fmt.Errorf("slug is reserved")
	}
	return nil
}
