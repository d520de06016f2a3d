package pathmap

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Disambiguate rewrites a directory listing's original names into
// unique WebDAV display names, per spec §4.4: the first occurrence of
// a name keeps it; subsequent ones become "name (2)", "name (3)", ...
// inserted before the final dot for names with an extension. A
// candidate already taken by an earlier entry moves on to the next
// free number. The result is a deterministic function of the input
// order.
func Disambiguate(names []string) []string {
	seen := make(map[string]int, len(names))
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))

	for i, name := range names {
		seen[name]++
		n := seen[name]
		candidate := name
		if n > 1 {
			candidate = suffixed(name, n)
		}
		for used[candidate] {
			n++
			seen[name] = n
			candidate = suffixed(name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}

	return out
}

// suffixed inserts " (n)" before the final extension dot, matching
// common file-manager disambiguation (e.g. "doc.txt" -> "doc (2).txt").
func suffixed(name string, n int) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return fmt.Sprintf("%s (%d)", name, n)
	}
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
