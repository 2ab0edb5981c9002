package sanitizer

import (
	"regexp"
	"sort"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reHorizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	reBlankLines      = regexp.MustCompile(`\n{3,}`)
)

func trimAndLower(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

func SanitizeEmail(input string) string {
	return Pipeline{trimAndLower}.Apply(input)
}

func SanitizeTitle(input string) string {
	return Pipeline{TrimAndNormalize}.Apply(input)
}

// SanitizeDescription collapses runs of spaces on each line but keeps up to
// one blank line between paragraphs.
func SanitizeDescription(input string) string {
	p := Pipeline{
		func(s string) string { return strings.ReplaceAll(s, "\r\n", "\n") },
		func(s string) string { return reHorizontalSpace.ReplaceAllString(s, " ") },
		func(s string) string {
			lines := strings.Split(s, "\n")
			for i, l := range lines {
				lines[i] = strings.TrimSpace(l)
			}
			return strings.Join(lines, "\n")
		},
		func(s string) string { return reBlankLines.ReplaceAllString(s, "\n\n") },
		strings.TrimSpace,
	}
	return p.Apply(input)
}

// SanitizeIDs trims, drops empties and duplicates, and sorts, so that
// equal sets always compare equal.
func SanitizeIDs(ids []string) []string {
	out := NormalizeStringSlice(ids, strings.TrimSpace)
	sort.Strings(out)
	return out
}
