// Package checksum implements the streaming SHA-256 accumulator used
// to fingerprint a Public Suffix List source file (spec.md §4.6).
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Accumulator is a streaming SHA-256 digest over PSL source bytes,
// fed line by line (or in one shot) as the input is read. The zero
// value is ready to use.
type Accumulator struct {
	h hash.Hash
}

// NewAccumulator returns a ready-to-use Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{h: sha256.New()}
}

// Write feeds more raw input bytes into the digest. It never fails
// (sha256.digest.Write never returns an error), satisfying io.Writer.
func (a *Accumulator) Write(p []byte) (int, error) {
	if a.h == nil {
		a.h = sha256.New()
	}
	return a.h.Write(p)
}

// Sum returns the current digest as lowercase hex.
func (a *Accumulator) Sum() string {
	if a.h == nil {
		a.h = sha256.New()
	}
	return hex.EncodeToString(a.h.Sum(nil))
}

// Format renders the apex TXT payload for spec.md §4.4 Pass H / §6:
// `"<unix-seconds> <sha256-hex>"` (without the surrounding TXT
// presentation quotes, which the Zone Compiler adds).
func Format(unixSeconds int64, hexDigest string) string {
	return fmt.Sprintf("%d %s", unixSeconds, hexDigest)
}

// Parse is the inverse of Format: it splits a `"<unix> <hex>"` payload
// (quotes already stripped by the caller) into its two fields.
func Parse(payload string) (unixSeconds int64, hexDigest string, ok bool) {
	cnt, err := fmt.Sscanf(payload, "%d %s", &unixSeconds, &hexDigest)
	if err != nil || cnt != 2 {
		return 0, "", false
	}
	return unixSeconds, hexDigest, true
}
