package utils

import (
	"regexp"
	"strings"
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	quoteDisallow  = regexp.MustCompile(`[^\w\s.,!?'"()-]`)
	tagDisallow    = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidSlug reports whether s is already in canonical slug form.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// SanitizeQuoteContent trims, collapses whitespace and drops everything except
// word characters and basic punctuation.
func SanitizeQuoteContent(s string) string {
	s = strings.TrimSpace(s)
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return quoteDisallow.ReplaceAllString(s, "")
}

// SanitizeTag makes s usable as an email provider tag value.
func SanitizeTag(s string) string {
	return tagDisallow.ReplaceAllString(s, "_")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
