// Package strings holds small helpers for list-valued settings.
package strings

import (
	"strings"
)

// SplitList splits a comma separated value, trimming each element and
// dropping empties and repeats. Order is preserved.
func SplitList(raw string) []string {
	return DedupeAndTrim(strings.Split(raw, ","))
}

// DedupeAndTrim removes duplicates and blank entries, trimming whitespace
// from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	var result []string
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
