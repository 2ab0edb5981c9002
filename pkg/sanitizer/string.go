package sanitizer

import "strings"

// TrimAndNormalize trims s and collapses every run of whitespace, including
// newlines and tabs, into a single space.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeName cleans a display name for users.
func NormalizeName(name string) string {
	return Pipeline{TrimAndNormalize}.Apply(name)
}
