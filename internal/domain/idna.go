package domain

import "strings"

// ToASCII converts a Public Suffix List rule (not a bare domain name)
// from Unicode to its ASCII-compatible (punycode) form.
//
// A rule may carry a leading "*" (proper wildcard) or "!" (wildcard
// exception) sentinel; that sentinel passes through unchanged, and
// the remaining dot-joined labels are each encoded independently via
// Label.ASCIIString.
func ToASCII(rule string) (string, error) {
	return convertRule(rule, func(label Label) (string, error) {
		return label.ASCIIString(), nil
	})
}

// ToUnicode converts a Public Suffix List rule from its ASCII
// (punycode) form back to Unicode, the inverse of ToASCII. As with
// ToASCII, a leading "*" or "!" sentinel passes through unchanged.
func ToUnicode(rule string) (string, error) {
	return convertRule(rule, func(label Label) (string, error) {
		return label.String(), nil
	})
}

// convertRule splits rule into its optional sentinel and dot-joined
// labels, validates and canonicalizes each label via ParseLabel, then
// reassembles the rule using render to pick the label's ASCII or
// Unicode spelling.
func convertRule(rule string, render func(Label) (string, error)) (string, error) {
	sentinel, body := "", rule
	switch {
	case strings.HasPrefix(rule, "!"):
		sentinel, body = "!", rule[1:]
	case rule == "*":
		return rule, nil
	case strings.HasPrefix(rule, "*."):
		sentinel, body = "*.", rule[2:]
	}

	if body == "" {
		return "", errEmptyRuleBody{rule}
	}

	labelStrs := strings.Split(body, ".")
	out := make([]string, len(labelStrs))
	for i, s := range labelStrs {
		// An inline wildcard label (e.g. the middle label of
		// "inline.*.wildcard.test") is not a domain label at all, and
		// must pass through both directions unchanged rather than
		// being rejected by IDNA validation.
		if s == "*" {
			out[i] = "*"
			continue
		}

		label, err := ParseLabel(s)
		if err != nil {
			return "", err
		}
		rendered, err := render(label)
		if err != nil {
			return "", err
		}
		out[i] = rendered
	}

	return sentinel + strings.Join(out, "."), nil
}

// errEmptyRuleBody reports that a rule's body (after stripping any
// "*." or "!" sentinel) is empty.
type errEmptyRuleBody struct {
	Rule string
}

func (e errEmptyRuleBody) Error() string {
	return "rule has no labels after its sentinel: " + e.Rule
}
