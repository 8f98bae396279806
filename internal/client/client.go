// Package client implements the Client/Decoder (spec.md §4.7): it
// queries a compiled psldns zone over the DNS wire protocol and
// decodes the answers back into PSL semantics -- the public suffix of
// a domain, whether a domain is itself a public suffix, and the set
// of rules that apply to it.
//
// This is the resolver-library transport variant (SPEC_FULL.md §4.7,
// §9): one PTR (or TXT) query per call, with CNAMEs in the answer
// chased by walking the answer section rather than reissuing queries,
// since the zone lives entirely behind one authoritative answer.
package client

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/publicsuffix/psldns/internal/checksum"
	"github.com/publicsuffix/psldns/internal/domain"
)

// maxCNAMEHops bounds the CNAME chain walked out of a single answer
// section, guarding against a malformed or looping zone (spec.md §9).
const maxCNAMEHops = 16

type cacheKey struct {
	owner string
	qtype uint16
}

// Client queries a psldns zone for PTR/TXT answers and decodes them.
// The zero value is not usable; construct with New.
type Client struct {
	dnsClient *dns.Client
	resolver  string // "host:port"
	zone      string // dot-terminated, e.g. "query.publicsuffix.zone."
	logger    *log.Logger

	mu    sync.Mutex
	cache map[cacheKey]*dns.Msg
}

// Option configures a Client constructed by New.
type Option func(*Client)

// WithTimeout sets the per-query timeout. The default is the
// underlying dns.Client's own default (2s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.dnsClient.Timeout = d }
}

// WithLogger sets the logger used for query tracing. The default
// discards all output (spec.md §4.0).
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDNSClient overrides the underlying *dns.Client, e.g. to set a
// custom Net ("tcp") or ReadTimeout/WriteTimeout.
func WithDNSClient(dc *dns.Client) Option {
	return func(c *Client) { c.dnsClient = dc }
}

// New returns a Client that queries resolver (a "host:port" address)
// for records under zone (e.g. "query.publicsuffix.zone").
func New(resolver, zone string, opts ...Option) *Client {
	c := &Client{
		dnsClient: new(dns.Client),
		resolver:  resolver,
		zone:      dns.Fqdn(strings.TrimSuffix(zone, ".")),
		logger:    log.New(io.Discard, "", 0),
		cache:     make(map[cacheKey]*dns.Msg),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// qname builds the fully qualified query name for domain under the
// Client's zone, e.g. ("www.example.com", "query.publicsuffix.zone.")
// -> "www.example.com.query.publicsuffix.zone.". d is IDNA-encoded to
// ASCII first, since the zone stores every owner name in ASCII/punycode
// form and the wire protocol cannot carry Unicode labels directly.
func (c *Client) qname(d string) string {
	d = strings.TrimSuffix(d, ".")
	if d == "" {
		return c.zone
	}
	if parsed, err := domain.Parse(d); err == nil {
		d = parsed.ASCIIString()
	} else {
		d = strings.ToLower(d)
	}
	return dns.Fqdn(d) + c.zone
}

// query issues a single DNS query of type qtype for owner (already
// zone-qualified), consulting and populating the per-instance cache.
// It never follows CNAMEs itself; callers that care (GetPublicSuffix)
// walk the returned message's answer section.
func (c *Client) query(ctx context.Context, owner string, qtype uint16) (*dns.Msg, error) {
	key := cacheKey{owner: owner, qtype: qtype}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	c.logger.Printf("querying %s %s", owner, dns.TypeToString[qtype])

	m := new(dns.Msg)
	m.SetQuestion(owner, qtype)
	m.RecursionDesired = true

	in, _, err := c.dnsClient.ExchangeContext(ctx, m, c.resolver)
	if err != nil {
		return nil, ResolverError{Domain: owner, Err: err}
	}
	if in.Rcode == dns.RcodeNameError {
		return nil, ResolverError{Domain: owner, Err: fmt.Errorf("NXDOMAIN (resolver claims the name does not exist; are you using a non-compliant resolver?)")}
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, ResolverError{Domain: owner, Err: fmt.Errorf("rcode %s", dns.RcodeToString[in.Rcode])}
	}

	c.mu.Lock()
	c.cache[key] = in
	c.mu.Unlock()

	return in, nil
}

// rrsetAt extracts every record of type t whose owner is exactly
// owner from msg's answer section.
func rrsetAt(msg *dns.Msg, owner string, t uint16) []dns.RR {
	var out []dns.RR
	for _, rr := range msg.Answer {
		if rr.Header().Rrtype == t && strings.EqualFold(rr.Header().Name, owner) {
			out = append(out, rr)
		}
	}
	return out
}

// followToFinalOwner walks CNAME records in msg's answer section
// starting at owner, returning the owner name of the terminal record
// (the first owner with no further CNAME redirecting it away). It
// caps the walk at maxCNAMEHops to guard against loops or a malformed
// zone (spec.md §9).
func followToFinalOwner(msg *dns.Msg, owner string) (string, error) {
	seen := map[string]bool{}
	for hop := 0; hop < maxCNAMEHops; hop++ {
		if seen[owner] {
			return "", fmt.Errorf("CNAME loop at %q", owner)
		}
		seen[owner] = true

		cnames := rrsetAt(msg, owner, dns.TypeCNAME)
		if len(cnames) == 0 {
			return owner, nil
		}
		owner = cnames[0].(*dns.CNAME).Target
	}
	return "", fmt.Errorf("CNAME chain exceeded %d hops starting at %q", maxCNAMEHops, owner)
}

// getPublicSuffixRaw issues the PTR query for d and returns the raw
// PTR target string at the end of any CNAME chain, dot-terminated.
// It returns UnsupportedRuleError if the terminal owner carries no
// PTR record (spec.md §4.7 step 3).
func (c *Client) getPublicSuffixRaw(ctx context.Context, d string) (string, error) {
	qname := c.qname(d)

	msg, err := c.query(ctx, qname, dns.TypePTR)
	if err != nil {
		return "", err
	}

	final, err := followToFinalOwner(msg, qname)
	if err != nil {
		return "", ResolverError{Domain: d, Err: err}
	}

	ptrs := rrsetAt(msg, final, dns.TypePTR)
	if len(ptrs) == 0 {
		return "", UnsupportedRuleError{Domain: d}
	}
	return ptrs[0].(*dns.PTR).Ptr, nil
}

// GetChecksum returns the hex digest half of the zone apex TXT payload
// (spec.md §4.6 / §4.7): the Compiler writes "<unix> <hex>", and only
// the hex digest is part of the Client's public contract. It returns
// ok=false if the apex carries no TXT record.
func (c *Client) GetChecksum(ctx context.Context) (hexDigest string, ok bool, err error) {
	msg, err := c.query(ctx, c.zone, dns.TypeTXT)
	if err != nil {
		return "", false, err
	}
	txts := rrsetAt(msg, c.zone, dns.TypeTXT)
	if len(txts) == 0 {
		return "", false, nil
	}
	payload := strings.Join(txts[0].(*dns.TXT).Txt, "")
	_, hexDigest, parsed := checksum.Parse(payload)
	if !parsed {
		return "", false, fmt.Errorf("malformed apex TXT checksum payload %q", payload)
	}
	return hexDigest, true, nil
}

// GetPublicSuffix decodes the public suffix of domain (spec.md §4.7
// steps 1-4): it issues the PTR query, follows CNAMEs, and
// reconstructs any wildcard labels in the PTR target from domain's
// own labels, right-aligned.
//
// domain must not be empty or begin with a dot (InvalidDomainError).
// A terminal owner with no PTR record yields UnsupportedRuleError. A
// non-wildcard target label that disagrees with the corresponding
// domain label (post-IDNA) yields InconsistentLabelError. The
// returned suffix is given in whatever encoding domain was given in:
// ASCII/punycode in, ASCII/punycode out; Unicode in, Unicode out
// (spec.md §8 P7, scenario 5).
func (c *Client) GetPublicSuffix(ctx context.Context, d string) (string, error) {
	if d == "" || d[0] == '.' {
		return "", InvalidDomainError{Domain: d}
	}

	raw, err := c.getPublicSuffixRaw(ctx, d)
	if err != nil {
		return "", err
	}
	publicSuffix := strings.TrimSuffix(raw, ".")

	parsed, err := domain.Parse(d)
	if err != nil {
		return "", InvalidDomainError{Domain: d}
	}
	domainLabels := parsed.Labels() // leaf-first
	publicLabels := strings.Split(publicSuffix, ".")

	// Walk both slices right-aligned (from the TLD end), matching the
	// querier's right-aligned substitution (spec.md §4.7 step 4), by
	// indexing each from its own end rather than reversing either one.
	for i := range publicLabels {
		pubIdx := len(publicLabels) - 1 - i
		domIdx := len(domainLabels) - 1 - i
		if domIdx < 0 {
			break
		}
		domainLabel := domainLabels[domIdx]
		if publicLabels[pubIdx] == "*" {
			publicLabels[pubIdx] = domainLabel.ASCIIString()
			continue
		}
		if publicLabels[pubIdx] != domainLabel.ASCIIString() {
			return "", InconsistentLabelError{
				Domain:      d,
				PublicLabel: publicLabels[pubIdx],
				DomainLabel: domainLabel.ASCIIString(),
			}
		}
	}

	asciiSuffix := strings.Join(publicLabels, ".")

	// Return in whatever encoding domain was given in: if domain was
	// already pure ASCII/punycode, it round-trips unchanged; if it
	// was Unicode, decode the reconstructed suffix back to Unicode.
	if d == parsed.ASCIIString() {
		return asciiSuffix, nil
	}
	unicodeSuffix, err := domain.Parse(asciiSuffix)
	if err != nil {
		return "", err
	}
	return unicodeSuffix.String(), nil
}

// IsPublicSuffix reports whether domain is itself a public suffix,
// i.e. has exactly as many labels as its own public suffix.
func (c *Client) IsPublicSuffix(ctx context.Context, d string) (bool, error) {
	suffix, err := c.GetPublicSuffix(ctx, d)
	if err != nil {
		return false, err
	}
	d = strings.TrimSuffix(d, ".")
	return strings.Count(d, ".") == strings.Count(suffix, "."), nil
}

// GetRules returns the set of PSL rule bodies that apply to domain,
// each IDNA-decoded back to Unicode (spec.md §4.7): the public suffix
// rule itself (if the PTR query succeeds; a terminal
// UnsupportedRuleError is tolerated and yields no PTR-derived rule),
// plus any rules listed in a TXT record at the queried name (wildcard
// exceptions and inline-wildcard sibling rules, spec.md §4.5).
func (c *Client) GetRules(ctx context.Context, d string) (map[string]bool, error) {
	raw := make(map[string]bool)

	if ptr, err := c.getPublicSuffixRaw(ctx, d); err == nil {
		raw[strings.TrimSuffix(ptr, ".")] = true
	} else if _, ok := err.(UnsupportedRuleError); !ok {
		return nil, err
	}

	qname := c.qname(d)
	msg, err := c.query(ctx, qname, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	for _, rr := range rrsetAt(msg, qname, dns.TypeTXT) {
		for _, s := range rr.(*dns.TXT).Txt {
			raw[s] = true
		}
	}

	rules := make(map[string]bool, len(raw))
	for r := range raw {
		unicode, err := domain.ToUnicode(r)
		if err != nil {
			return nil, fmt.Errorf("decoding rule %q: %w", r, err)
		}
		rules[unicode] = true
	}
	return rules, nil
}
