package zone

import "strings"

// stripLabelOK removes the leftmost label of a dot-joined owner name,
// mirroring Python's `name.split('.', 1)`: it returns the remainder
// and ok=true when s has a dot, or ok=false when s is a single label
// (its parent is the zone root, not expressible as a further label
// strip).
func stripLabelOK(s string) (string, bool) {
	i := strings.Index(s, ".")
	if i < 0 {
		return "", false
	}
	return s[i+1:], true
}
