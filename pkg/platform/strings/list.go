// Package strings holds small string-list helpers shared by config parsing.
package strings

import (
	"strings"
)

// SplitList splits a separated list such as "a, b,,a" into its distinct,
// trimmed, non-empty elements in first-seen order.
func SplitList(value, sep string) []string {
	if value == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(value, sep))
}

// DedupeAndTrim drops empty and repeated elements after trimming whitespace.
// Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
