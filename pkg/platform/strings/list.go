// Package strings parses list-valued settings.
package strings

import "strings"

// SplitList splits a comma-separated value into its non-blank entries,
// trimmed, keeping only the first occurrence of each.
func SplitList(value string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
