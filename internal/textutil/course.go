package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CoursePrefix is prepended to every derived course identifier.
const CoursePrefix = "course_"

// CourseID derives a stable course identifier from a raw folder name.
// The name is lowercased, spaces become underscores, and only letters,
// digits, underscores and hyphens survive.
func CourseID(folderName string) string {
	stem := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(folderName)), " ", "_")
	var b strings.Builder
	for _, r := range stem {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		out = "untitled"
	}
	return CoursePrefix + out
}

// CourseTitle turns a raw folder name into a human-readable title:
// underscores and hyphens become spaces and each word is title-cased.
func CourseTitle(folderName string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(folderName)
	words := strings.Fields(replaced)
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// SplitTags splits a comma-separated tag list, trimming blanks and dropping
// empty and repeated entries while preserving order.
func SplitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
