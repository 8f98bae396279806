// Package checker implements the loopback Checker (spec.md §4.8): it
// re-reads a Public Suffix List source file, queries a running zone
// through the Client for each rule's round-trip, and reports any rule
// whose compiled zone disagrees with its own source line, plus a
// checksum comparison against the zone's published apex TXT.
package checker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/creachadair/mds/mdiff"
	"github.com/creachadair/taskgroup"

	"github.com/publicsuffix/psldns/internal/checksum"
	"github.com/publicsuffix/psldns/internal/client"
	"github.com/publicsuffix/psldns/internal/domain"
	"github.com/publicsuffix/psldns/internal/rule"
)

// LineResult is the round-trip outcome for one source rule.
type LineResult struct {
	Line   int
	Rule   string          // the lexed rule text, sentinels intact
	Rules  map[string]bool // GetRules(body(Rule)) result
	InSync bool
}

// Report is the outcome of a full Check run.
type Report struct {
	Checked        int
	Mismatches     []LineResult
	ChecksumMatch  bool
	LocalChecksum  string
	RemoteChecksum string
}

// Fetcher fetches the upstream PSL source at a given git ref.
// *github.Client implements this.
type Fetcher interface {
	PSLForRef(ctx context.Context, ref string) ([]byte, error)
}

// Checker re-verifies a PSL source file against a running zone
// through a Client.
type Checker struct {
	client      *client.Client
	fetcher     Fetcher
	concurrency int
	logger      *log.Logger
}

// Option configures a Checker constructed by New.
type Option func(*Checker)

// WithLogger sets the logger used to trace each rule's in-sync /
// out-of-sync outcome, the Go equivalent of the original
// `logging.getLogger('psl')` DEBUG/INFO split in `checker.py`. The
// default discards all output.
func WithLogger(l *log.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// WithConcurrency sets how many rules are checked in flight at once.
// The default, 1, checks rules strictly in order; each rule's
// round-trip query is independent, so raising this is safe as long as
// the Checker's Client tolerates concurrent use (it does, via its
// cache mutex).
func WithConcurrency(n int) Option {
	return func(c *Checker) { c.concurrency = n }
}

// WithFetcher attaches a Fetcher so DiffUpstream can retrieve the
// official PSL source at a given git ref.
func WithFetcher(f Fetcher) Option {
	return func(c *Checker) { c.fetcher = f }
}

// New returns a Checker that queries c for each rule's round-trip.
func New(c *client.Client, opts ...Option) *Checker {
	ck := &Checker{
		client:      c,
		concurrency: 1,
		logger:      log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(ck)
	}
	return ck
}

// Check reads src (a PSL source file) and verifies every rule round-
// trips through the zone, then compares the locally accumulated
// checksum against the zone's published apex TXT (spec.md §4.8).
func (c *Checker) Check(ctx context.Context, src io.Reader) (*Report, error) {
	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("reading PSL source: %w", err)
	}

	acc := checksum.NewAccumulator()
	if _, err := acc.Write(raw); err != nil {
		return nil, err
	}

	lines := splitLines(string(raw))
	results := make([]*LineResult, len(lines))

	g, start := taskgroup.New(nil).Limit(c.concurrency)
	for i, line := range lines {
		i, line := i, line
		start(func() error {
			res, err := c.checkLine(ctx, i+1, line)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{LocalChecksum: acc.Sum()}
	for _, res := range results {
		if res == nil {
			continue
		}
		report.Checked++
		if !res.InSync {
			report.Mismatches = append(report.Mismatches, *res)
		}
	}

	remoteHex, ok, err := c.client.GetChecksum(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		report.RemoteChecksum = remoteHex
		report.ChecksumMatch = remoteHex == report.LocalChecksum
	}

	return report, nil
}

// checkLine classifies one source line and queries the zone for the
// set of rules that apply to its body, reporting whether the rule
// itself (sentinels intact) is a member (spec.md §4.8).
func (c *Checker) checkLine(ctx context.Context, lineNo int, line string) (*LineResult, error) {
	lexed, ok := rule.Lex(line)
	if !ok {
		return nil, nil
	}

	ascii, err := domain.ToASCII(lexed)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNo, err)
	}
	queryDomain := strings.TrimPrefix(ascii, "!")

	rules, err := c.client.GetRules(ctx, queryDomain)
	if err != nil {
		return nil, fmt.Errorf("line %d (%s): %w", lineNo, ascii, err)
	}

	// GetRules decodes every rule back to Unicode, so membership is
	// tested against the rule's canonical Unicode spelling.
	unicode, err := domain.ToUnicode(ascii)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineNo, err)
	}
	inSync := rules[unicode]
	if inSync {
		c.logger.Printf("%s maps to rules %v", lexed, rules)
	} else {
		c.logger.Printf("OUT OF SYNC: %s maps to rules %v", lexed, rules)
	}

	return &LineResult{
		Line:   lineNo,
		Rule:   lexed,
		Rules:  rules,
		InSync: inSync,
	}, nil
}

// DiffUpstream fetches the official PSL source at ref via the
// attached Fetcher and returns a unified diff against local (empty if
// they match). This supplements spec.md §4.8, which only compares
// checksums and cannot show what changed.
func (c *Checker) DiffUpstream(ctx context.Context, local []byte, ref string) (string, error) {
	if c.fetcher == nil {
		return "", fmt.Errorf("checker: no upstream Fetcher configured")
	}
	upstream, err := c.fetcher.PSLForRef(ctx, ref)
	if err != nil {
		return "", err
	}
	if bytes.Equal(local, upstream) {
		return "", nil
	}

	lhs := splitLines(string(local))
	rhs := splitLines(string(upstream))
	diff := mdiff.New(lhs, rhs).AddContext(3)

	var buf bytes.Buffer
	mdiff.FormatUnified(&buf, diff, &mdiff.FileInfo{
		Left:  "local/public_suffix_list.dat",
		Right: "upstream@" + ref + "/public_suffix_list.dat",
	})
	return buf.String(), nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
