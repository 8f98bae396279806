// Package emitter turns a compiled zone into the wire format a DNS
// hosting provider's API expects (spec.md §4.5).
package emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/natefinch/atomic"

	"github.com/publicsuffix/psldns/internal/zone"
)

// Record is one provider rrset, shaped to match deSEC's bulk rrset
// API (spec.md §4.5): a subname relative to the hosted zone, a TTL,
// an RR type, and its record data.
type Record struct {
	Subname string   `json:"subname"`
	TTL     int      `json:"ttl"`
	Type    string   `json:"type"`
	Records []string `json:"records"`
}

// Emitter turns a compiled Zone into provider-ready Records.
type Emitter interface {
	Emit(z *zone.Zone) []Record
}

const defaultTTL = 86400

// Option configures an Emitter constructed by New profile functions.
type Option func(*deSEC)

// WithTTL overrides the TTL applied to every emitted record. The
// default is 86400 seconds (deSEC's own default, spec.md §4.5).
func WithTTL(d time.Duration) Option {
	return func(e *deSEC) { e.ttl = int(d.Seconds()) }
}

// deSEC is the reference Emitter profile: it formats records the way
// https://desec.io/'s REST API expects them (spec.md §4.5 /
// providers/desec.py).
type deSEC struct {
	zone string // without a trailing dot, e.g. "query.publicsuffix.zone"
	ttl  int
}

// NewDeSEC returns an Emitter that formats records for the deSEC API,
// with CNAME targets qualified under zone (e.g.
// "query.publicsuffix.zone").
func NewDeSEC(zoneName string, opts ...Option) Emitter {
	e := &deSEC{zone: zoneName, ttl: defaultTTL}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit formats every owner's RRsets in z as deSEC rrsets (spec.md
// §4.5 / providers/desec.py's _update_rrsets): PTR and CNAME records
// are given a trailing dot to make them fully qualified; CNAME
// targets are additionally suffixed with the hosted zone name, since
// a CNAME's data is a bare name relative to that zone, not an
// absolute public-suffix domain the way a PTR's data is. TXT records
// pass through unchanged -- the compiler already presentation-quotes
// them.
func (e *deSEC) Emit(z *zone.Zone) []Record {
	var out []Record
	for _, owner := range z.Owners() {
		for _, rr := range z.RRsets(owner) {
			out = append(out, Record{
				Subname: owner,
				TTL:     e.ttl,
				Type:    rr.Type.String(),
				Records: e.formatData(rr),
			})
		}
	}
	return out
}

func (e *deSEC) formatData(rr zone.RRset) []string {
	if rr.Type == zone.TXT {
		records := make([]string, len(rr.Records))
		copy(records, rr.Records)
		return records
	}

	records := make([]string, len(rr.Records))
	for i, v := range rr.Records {
		if rr.Type == zone.CNAME {
			v = v + "." + e.zone
		}
		records[i] = v + "."
	}
	return records
}

// WriteJSON marshals recs as a JSON array and writes it to w.
func WriteJSON(w io.Writer, recs []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteJSONFile marshals recs as a JSON array and writes it to path
// atomically, so a crash mid-write can never leave a torn file.
func WriteJSONFile(path string, recs []Record) error {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, recs); err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
