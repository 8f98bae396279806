package zone

import (
	"fmt"
	"strings"

	"github.com/publicsuffix/psldns/internal/rule"
)

// passWildcardExceptionRules is Pass C: for each "!E" rule, E is
// carved out of its enclosing proper wildcard. Finding what E's own
// subdomains should resolve to takes two climbs up E's ancestor
// chain: the first locates the proper wildcard E is exempted from,
// the second (continuing from there) locates the nearest covering
// rule, which may itself turn out to be another wildcard rather than
// a concrete owner. E carries both the resulting PTR and a TXT record
// documenting the wildcard and the exception it was exempted by.
//
// Always overwrites whatever Pass A/B wrote at owner E (a regular
// rule body equal to an exception's body never occurs in practice,
// but if it did, the exception takes priority per spec.md §3).
func passWildcardExceptionRules(s *compilerState, store *rule.Store) {
	for _, r := range store.WildcardException {
		e := r.Body

		// Phase 1: find the nearest ancestor whose proper wildcard is
		// already registered -- that wildcard is what e is exempted
		// from. The "parent == e" disjunct forces at least one climb,
		// since the wildcard can never be registered at e itself.
		parent := e
		for parent == e || !s.has("*."+parent) {
			next, ok := stripLabelOK(parent)
			if !ok {
				parent = "*"
				break
			}
			parent = next
		}
		wildcard := "*." + parent

		// Phase 2: continue climbing from there to find the covering
		// rule e's subdomains should resolve to: either a concrete
		// owner, or, if a wildcard exists at a level climbed to, that
		// wildcard's own owner name (taken even when a concrete owner
		// also exists at that level).
		for parent != "*" && !s.has(parent) {
			next, ok := stripLabelOK(parent)
			if !ok {
				parent = "*"
				break
			}
			parent = next
			if s.has("*." + parent) {
				parent = "*." + parent
			}
		}

		txt := []string{
			fmt.Sprintf("%q", wildcard),
			fmt.Sprintf("%q", "!"+e),
		}
		s.setBoth(e, RRset{Type: PTR, Records: []string{parent}}, RRset{Type: TXT, Records: txt})
	}
}

// passPrioritizeExceptions is Pass E: an exception rule outranks any
// stray record that Pass A/D may have written for a descendant of the
// exempted name, since per the matching algorithm an exception and
// its own subdomains are never covered by the wildcard it carves out
// of. Deletes every owner (other than E itself) ending in "."+E.
func passPrioritizeExceptions(s *compilerState, store *rule.Store) {
	for _, r := range store.WildcardException {
		suffix := "." + r.Body
		var toDelete []string
		for owner := range s.rrsets {
			if owner != r.Body && strings.HasSuffix(owner, suffix) {
				toDelete = append(toDelete, owner)
			}
		}
		for _, owner := range toDelete {
			s.delete(owner)
		}
	}
}
