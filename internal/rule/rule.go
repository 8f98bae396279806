// Package rule implements the Rule Lexer and Rule Classifier & Store
// for Public Suffix List source lines.
//
// Lex turns a raw source line into a Rule (or nothing, for blank
// lines and comments). Classify sorts a Rule into one of four kinds
// per the matching semantics at https://publicsuffix.org/list/. Store
// accumulates classified rules into the four insertion-ordered
// buckets the Zone Compiler consumes.
package rule

import "strings"

// Kind is the classification of a Rule, per the PSL matching algorithm.
type Kind int

const (
	// Regular is a plain suffix rule with no wildcard or exception,
	// e.g. "com" or "co.uk".
	Regular Kind = iota
	// ProperWildcard is a rule whose only "*" is its leftmost label,
	// e.g. "*.ck".
	ProperWildcard
	// WildcardException is a rule beginning with "!", overriding a
	// proper wildcard match at exactly that name, e.g. "!www.ck".
	WildcardException
	// InlineWildcard is a rule with a "*" at a position other than
	// the leftmost label, e.g. "a.*.b". These are not representable
	// in DNS and are marked unsupported by the Zone Compiler.
	InlineWildcard
)

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case ProperWildcard:
		return "proper-wildcard"
	case WildcardException:
		return "wildcard-exception"
	case InlineWildcard:
		return "inline-wildcard"
	default:
		return "unknown"
	}
}

// Rule is a single classified Public Suffix List rule, already
// IDNA-encoded to ASCII and with its "*"/"!" sentinel stripped.
//
// Body is the rule with Kind-specific decoration removed:
//   - Regular:            the rule verbatim, e.g. "co.uk"
//   - ProperWildcard:     the part after "*.", e.g. "ck" for "*.ck"
//   - WildcardException:  the part after "!", e.g. "www.ck" for "!www.ck"
//   - InlineWildcard:     the rule verbatim, e.g. "a.*.b" ("*" kept in place)
type Rule struct {
	Kind Kind
	Body string
}

// Lex strips leading/trailing whitespace and lowercases line. It
// returns ok=false for blank lines and "//" comments, matching the
// PSL source format (spec.md §6). Lex never fails: malformed IDNA is
// deferred to Classify, which performs the encoding.
func Lex(line string) (text string, ok bool) {
	candidate := strings.TrimSpace(line)
	if candidate == "" || strings.HasPrefix(candidate, "//") {
		return "", false
	}
	return strings.ToLower(candidate), true
}

// Classify sorts a lexed rule string (as returned by Lex) into its
// Kind and extracts its Body, per spec.md §4.3. encodeASCII is called
// to IDNA-encode the rule body to ASCII; it should be domain.ToASCII
// wired in by the caller, kept as a parameter here to keep this
// package free of a direct domain import cycle concern and easy to
// test in isolation.
//
// The inline-wildcard check runs first and looks for a "*" anywhere
// after the first character, so a rule's kind is decided by
// whether it carries an embedded wildcard at all, not by its leading
// character; only then do the leading "*" and "!" sentinels get
// checked.
func Classify(lexed string, encodeASCII func(string) (string, error)) (Rule, error) {
	ascii, err := encodeASCII(lexed)
	if err != nil {
		return Rule{}, err
	}

	switch {
	case strings.Contains(ascii[1:], "*"):
		return Rule{Kind: InlineWildcard, Body: ascii}, nil
	case strings.HasPrefix(ascii, "*"):
		return Rule{Kind: ProperWildcard, Body: strings.TrimPrefix(ascii, "*.")}, nil
	case strings.HasPrefix(ascii, "!"):
		return Rule{Kind: WildcardException, Body: ascii[1:]}, nil
	default:
		return Rule{Kind: Regular, Body: ascii}, nil
	}
}
