// Package query normalizes keyword queries into the canonical form used as
// both the Dispatcher's coalescing key and the Archive's directory name.
package query

import (
	"sort"
	"strings"
)

// denySet is stripped from the query before tokenizing, matching the
// original collector's punctuation blacklist.
const denySet = `%()*,/:;<=>?[\]^` + "`" + `{|}~`

// Normalize lowercases q, strips denySet punctuation, splits on " OR ",
// sorts the disjuncts lexicographically, and rejoins with " OR ". The
// result is idempotent and order-insensitive by construction.
func Normalize(q string) string {
	lowered := strings.ToLower(q)

	var stripped strings.Builder
	stripped.Grow(len(lowered))
	for _, r := range lowered {
		if strings.ContainsRune(denySet, r) {
			continue
		}
		stripped.WriteRune(r)
	}

	parts := strings.Split(stripped.String(), " or ")
	disjuncts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			disjuncts = append(disjuncts, p)
		}
	}
	sort.Strings(disjuncts)
	return strings.Join(disjuncts, " OR ")
}

// Valid reports whether a normalized query is non-empty.
func Valid(normalized string) bool {
	return normalized != ""
}
