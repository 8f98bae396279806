package zone

import (
	"fmt"
	"strings"

	"github.com/publicsuffix/psldns/internal/rule"
)

// passInlineWildcardRules is Pass D: an inline-wildcard rule (the "*"
// appears somewhere other than as the leading label, e.g. "a.*.b") has
// no single owner name a plain PTR can express, since the wildcard
// label sits in the middle of the name rather than covering it
// entirely. Instead, every inline rule sharing the same right-hand
// parent (the portion of the rule after its last "*", which always
// keeps its leading dot) is recorded as a TXT rule list at the owner
// "*"+parent, for the Client to interpret at query time (spec.md §7).
//
// If Pass B already wrote a proper-wildcard PTR at that owner (the
// rule set also contains a plain "*.<parent>" entry, which can happen
// for defensively-written zones), that record's data is absorbed into
// the TXT list rather than silently discarded.
func passInlineWildcardRules(s *compilerState, store *rule.Store) {
	groups := make(map[string][]string)
	var owners []string
	for _, r := range store.InlineWildcard {
		i := strings.LastIndex(r.Body, "*")
		if i < 0 {
			continue
		}
		parent := r.Body[i+1:]
		owner := "*" + parent
		if _, ok := groups[owner]; !ok {
			owners = append(owners, owner)
		}
		groups[owner] = append(groups[owner], r.Body)
	}

	for _, owner := range owners {
		var txt []string
		if existing, ok := s.RRset(owner, PTR); ok {
			for _, rec := range existing.Records {
				txt = append(txt, fmt.Sprintf("%q", rec))
			}
		}
		for _, raw := range groups[owner] {
			txt = append(txt, fmt.Sprintf("%q", raw))
		}
		s.set(owner, TXT, txt)
	}
}
