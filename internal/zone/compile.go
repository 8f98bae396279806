package zone

import (
	"fmt"
	"io"
	"time"

	"github.com/publicsuffix/psldns/internal/checksum"
	"github.com/publicsuffix/psldns/internal/rule"
)

// InternalError reports that the Compiler's own invariants were
// violated. It is fatal: compilation aborts (spec.md §7).
type InternalError struct {
	Msg string
}

func (e InternalError) Error() string { return "zone compiler: " + e.Msg }

// compilerState is the mutable working set for a single Compile call.
// It is never shared between compilations (spec.md §5): each call
// constructs and discards its own state.
type compilerState struct {
	rrsets map[string][]RRset
}

func newCompilerState() *compilerState {
	return &compilerState{rrsets: make(map[string][]RRset)}
}

func (s *compilerState) has(owner string) bool {
	_, ok := s.rrsets[owner]
	return ok
}

// RRset returns the single RRset of type t at owner, if any.
func (s *compilerState) RRset(owner string, t RRType) (RRset, bool) {
	for _, rr := range s.rrsets[owner] {
		if rr.Type == t {
			return rr, true
		}
	}
	return RRset{}, false
}

// set replaces the RRset list at owner with exactly one RRset,
// overwriting whatever passes before it wrote there. Every pass in
// this file documents which earlier writes it is permitted to
// overwrite (spec.md §4.4, §9).
func (s *compilerState) set(owner string, t RRType, records []string) {
	s.rrsets[owner] = []RRset{{Owner: owner, Type: t, Records: records}}
}

// setBoth installs two RRsets (of different types) at owner in one
// step, used only by Pass C which writes both a PTR and a TXT.
func (s *compilerState) setBoth(owner string, a, b RRset) {
	a.Owner, b.Owner = owner, owner
	s.rrsets[owner] = []RRset{a, b}
}

func (s *compilerState) delete(owner string) {
	delete(s.rrsets, owner)
}

// Compile runs the eight-pass (A-H) pipeline over store and returns the
// compiled Zone. raw is the original PSL source, read in full to seed
// the checksum; clock supplies the apex TXT timestamp (spec.md §9,
// injectable for deterministic tests).
//
// Pass order is semantically significant and must not be
// parallelized (spec.md §4.4, §9): each pass is documented with the
// specific overwrites it is permitted to make on earlier passes'
// output.
func Compile(store *rule.Store, raw io.Reader, clock func() time.Time) (*Zone, error) {
	s := newCompilerState()

	passRegularRules(s, store)
	passProperWildcardRules(s, store)
	passWildcardExceptionRules(s, store)
	passInlineWildcardRules(s, store)
	passPrioritizeExceptions(s, store)
	passRootRule(s)
	passFixWildcardShadowing(s)

	acc := checksum.NewAccumulator()
	if _, err := io.Copy(acc, raw); err != nil {
		return nil, fmt.Errorf("hashing PSL input: %w", err)
	}
	passApexTXT(s, clock().Unix(), acc.Sum())

	return &Zone{rrsets: s.rrsets}, nil
}

// passRegularRules is Pass A: for each regular rule R, set owner R to
// PTR R. May overwrite an RRset written by an earlier duplicate
// regular rule (last write wins, spec.md §3).
func passRegularRules(s *compilerState, store *rule.Store) {
	for _, r := range store.Regular {
		s.set(r.Body, PTR, []string{r.Body})
	}
}

// passProperWildcardRules is Pass B: for each "*.S" rule, set owner
// "*.S" to PTR "*.S". Runs before CNAMEs exist, so nothing to
// overwrite yet; Pass G may later skip this owner because it starts
// with "*".
func passProperWildcardRules(s *compilerState, store *rule.Store) {
	for _, r := range store.ProperWildcard {
		owner := "*." + r.Body
		s.set(owner, PTR, []string{owner})
	}
}

// passRootRule is Pass F: write the apex wildcard "*" with PTR "*",
// the PSL's default rule that any unlisted TLD is itself a public
// suffix. Must run after Pass E (exception priority sweep) and before
// Pass G (shadowing repair), which both inspect "*".
func passRootRule(s *compilerState) {
	s.set("*", PTR, []string{"*"})
}

// passApexTXT is Pass H: write the zone apex checksum/timestamp TXT
// record (invariant I1). Always runs last.
func passApexTXT(s *compilerState, unixSeconds int64, hexDigest string) {
	payload := fmt.Sprintf("%q", checksum.Format(unixSeconds, hexDigest))
	s.set("", TXT, []string{payload})
}
