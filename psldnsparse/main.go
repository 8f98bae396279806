// psldnsparse reads a Public Suffix List source file, compiles it
// into a psldns zone, and emits the compiled records as JSON.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"

	"github.com/publicsuffix/psldns/internal/domain"
	"github.com/publicsuffix/psldns/internal/emitter"
	"github.com/publicsuffix/psldns/internal/rule"
	"github.com/publicsuffix/psldns/internal/zone"
)

func main() {
	log.SetFlags(0)

	root := &command.C{
		Name:  filepath.Base(os.Args[0]),
		Usage: "<psl-file> [flags]",
		Help: `Compile a Public Suffix List source file into a psldns zone and
print it as JSON, in the format a DNS hosting provider's bulk rrset
API expects (one object per owner/type: subname, ttl, type, records).`,
		SetFlags: command.Flags(flax.MustBind, &parseArgs),
		Run:      command.Adapt(runParse),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx).MergeFlags(true)
	command.RunOrFail(env, os.Args[1:])
}

var parseArgs struct {
	Zone   string        `flag:"zone,default=query.publicsuffix.zone,FQDN of the zone apex to compile under"`
	TTL    time.Duration `flag:"ttl,default=24h,TTL applied to every emitted record"`
	Output string        `flag:"o,Write JSON to this path instead of standard output"`
}

func runParse(env *command.Env, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading PSL file: %w", err)
	}

	var store rule.Store
	for i, line := range strings.Split(string(raw), "\n") {
		if _, err := store.LexAndClassify(line, domain.ToASCII); err != nil {
			return fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
	}

	z, err := zone.Compile(&store, bytes.NewReader(raw), time.Now)
	if err != nil {
		return fmt.Errorf("compiling zone: %w", err)
	}

	recs := emitter.NewDeSEC(parseArgs.Zone, emitter.WithTTL(parseArgs.TTL)).Emit(z)

	if parseArgs.Output == "" {
		return emitter.WriteJSON(env, recs)
	}
	if err := emitter.WriteJSONFile(parseArgs.Output, recs); err != nil {
		return err
	}
	fmt.Fprintf(env, "wrote %d records to %s\n", len(recs), parseArgs.Output)
	return nil
}
