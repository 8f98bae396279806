package zone

import "sort"

// passFixWildcardShadowing is Pass G: the core fix for the RFC 4592
// empty-non-terminal problem (spec.md §3, invariant I6). A wildcard
// owner like "*.ck" only answers a query whose closest encloser is
// exactly "ck"; a DNS client asking about "foo.ck" directly would get
// the right answer, but it never walks ancestors itself -- it only
// ever queries the name it was given and follows whatever CNAME chain
// comes back. So every owner needs a child wildcard ("*.<owner>")
// bridging any of its subdomains back to it, and every empty
// non-terminal created along an owner's ancestor chain needs its own
// CNAME up to whichever rule currently covers that level, or the
// empty non-terminal's mere existence in the zone would silently
// block the wildcard that should otherwise have answered there.
//
// For each owner present before this pass, it repeatedly adds a child
// wildcard at the current level and climbs to the parent level,
// stopping once a level already carries both its own RRset and its
// own child wildcard (or once it runs out of ancestors). Owners
// beginning with "*" are not bridged themselves -- a wildcard name
// cannot newly appear while climbing -- but climbing through them
// continues so that further-up ancestors still get fixed.
func passFixWildcardShadowing(s *compilerState) {
	var owners []string
	for o := range s.rrsets {
		owners = append(owners, o)
	}
	sort.Strings(owners)

	for _, start := range owners {
		rule, ruleOK := start, true
		for ruleOK && !(s.has(rule) && s.has("*."+rule)) {
			next, nextOK := stripLabelOK(rule)

			if len(rule) == 0 || rule[0] != '*' {
				if !s.has(rule) {
					target := "*"
					if nextOK {
						target = next
					}
					s.set(rule, CNAME, []string{target})
				}
				wildcard := "*." + rule
				if !s.has(wildcard) {
					s.set(wildcard, CNAME, []string{rule})
				}
			}

			rule, ruleOK = next, nextOK
		}
	}
}
