package rule

// Store holds the four insertion-ordered rule buckets the Zone
// Compiler's passes iterate over. Duplicates are tolerated; the
// Compiler resolves conflicts by last-write-wins at the zone level
// (spec.md §3).
//
// The zero value is an empty, ready-to-use Store.
type Store struct {
	Regular           []Rule
	ProperWildcard    []Rule
	WildcardException []Rule
	InlineWildcard    []Rule
}

// Add appends an already classified r to the bucket for its Kind.
func (s *Store) Add(r Rule) {
	switch r.Kind {
	case Regular:
		s.Regular = append(s.Regular, r)
	case ProperWildcard:
		s.ProperWildcard = append(s.ProperWildcard, r)
	case WildcardException:
		s.WildcardException = append(s.WildcardException, r)
	case InlineWildcard:
		s.InlineWildcard = append(s.InlineWildcard, r)
	}
}

// LexAndClassify lexes and classifies line, adding the resulting Rule
// to the Store. It reports ok=false for blank lines and comments
// (nothing was added), and a non-nil err if the line failed IDNA
// encoding.
func (s *Store) LexAndClassify(line string, encodeASCII func(string) (string, error)) (ok bool, err error) {
	lexed, ok := Lex(line)
	if !ok {
		return false, nil
	}

	r, err := Classify(lexed, encodeASCII)
	if err != nil {
		return false, err
	}

	s.Add(r)
	return true, nil
}
