package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[\s_-]+`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// Slugify derives a URL slug from a title: accents folded, lowercased,
// punctuation stripped, whitespace runs turned into single hyphens.
func Slugify(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		folded = title
	}
	s := strings.ToLower(folded)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSeparate.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidSlug reports whether s matches ^[a-z0-9-]+$.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
