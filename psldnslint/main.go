// psldnslint parses a Public Suffix List source file and prints a
// breakdown of its rules by kind, flagging inline-wildcard rules that
// the Zone Compiler cannot represent as DNS answers (spec.md §4.3).
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/creachadair/command"

	"github.com/publicsuffix/psldns/internal/domain"
	"github.com/publicsuffix/psldns/internal/rule"
)

func main() {
	log.SetFlags(0)

	root := &command.C{
		Name:  filepath.Base(os.Args[0]),
		Usage: "<psl-file>",
		Help: `Parse a Public Suffix List source file and print a breakdown of
its rules by kind (regular, proper wildcard, wildcard exception,
inline wildcard).

Inline-wildcard rules are flagged: the Zone Compiler cannot
represent them as a public suffix answer, so any domain under one
resolves as UnsupportedRuleError at query time.`,
		Run: command.Adapt(runLint),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx).MergeFlags(true)
	command.RunOrFail(env, os.Args[1:])
}

func runLint(env *command.Env, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading PSL file: %w", err)
	}

	counts := map[rule.Kind]int{}
	var inlineWildcards []string
	var errs []error

	lineNo := 0
	for _, line := range strings.Split(string(raw), "\n") {
		lineNo++
		lexed, ok := rule.Lex(line)
		if !ok {
			continue
		}
		r, err := rule.Classify(lexed, domain.ToASCII)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		counts[r.Kind]++
		if r.Kind == rule.InlineWildcard {
			inlineWildcards = append(inlineWildcards, fmt.Sprintf("line %d: %s", lineNo, lexed))
		}
	}

	for _, k := range []rule.Kind{rule.Regular, rule.ProperWildcard, rule.WildcardException, rule.InlineWildcard} {
		fmt.Fprintf(env, "%-20s %d\n", k, counts[k])
	}

	if len(inlineWildcards) > 0 {
		fmt.Fprintln(env, "\ninline wildcards (unsupported by the zone):")
		for _, w := range inlineWildcards {
			fmt.Fprintf(env, "  %s\n", w)
		}
	}

	for _, err := range errs {
		fmt.Fprintln(env, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d rules failed to classify", len(errs))
	}
	return nil
}
