package services

import (
	"strings"

	"blog-cms/models"
)

// ParseKeywords splits the form input on whitespace and drops duplicates,
// keeping the first occurrence. A keyword name can therefore never contain
// a space.
func ParseKeywords(input string) []string {
	fields := strings.Fields(input)
	names := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, name := range fields {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// JoinKeywords flattens keywords into the space separated form value.
func JoinKeywords(keywords []models.Keyword) string {
	names := make([]string, len(keywords))
	for i, k := range keywords {
		names[i] = k.Name
	}
	return strings.Join(names, " ")
}
