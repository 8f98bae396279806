// psldnscheck re-verifies a Public Suffix List source file against a
// running psldns zone: every rule must round-trip through the zone,
// and the zone's published checksum must match the file's own.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"

	"github.com/publicsuffix/psldns/internal/checker"
	"github.com/publicsuffix/psldns/internal/client"
	"github.com/publicsuffix/psldns/internal/github"
)

func main() {
	log.SetFlags(0)

	root := &command.C{
		Name:  filepath.Base(os.Args[0]),
		Usage: "<psl-file> --resolver HOST [flags]",
		Help: `Check a Public Suffix List source file against a running psldns
zone: every rule must round-trip through the zone via a DNS query,
and the zone's published checksum must agree with the file's own.`,
		SetFlags: command.Flags(flax.MustBind, &checkArgs),
		Run:      command.Adapt(runCheck),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx).MergeFlags(true)
	command.RunOrFail(env, os.Args[1:])
}

var checkArgs struct {
	Resolver    string        `flag:"resolver,Resolver address (host:port) to query"`
	Zone        string        `flag:"zone,default=query.publicsuffix.zone,FQDN of the zone apex to query under"`
	Timeout     time.Duration `flag:"timeout,default=5s,Per-query timeout"`
	UpstreamRef string        `flag:"upstream-ref,Diff the file against publicsuffix/list at this git ref before checking"`
	Concurrency int           `flag:"concurrency,default=1,Number of rules to check concurrently"`
}

func runCheck(env *command.Env, path string) error {
	if checkArgs.Resolver == "" {
		return errors.New("--resolver is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading PSL file: %w", err)
	}

	c := client.New(checkArgs.Resolver, checkArgs.Zone, client.WithTimeout(checkArgs.Timeout))

	var opts []checker.Option
	opts = append(opts, checker.WithConcurrency(checkArgs.Concurrency))
	if checkArgs.UpstreamRef != "" {
		opts = append(opts, checker.WithFetcher(&github.Client{}))
	}
	ck := checker.New(c, opts...)

	ctx := env.Context()

	if checkArgs.UpstreamRef != "" {
		diff, err := ck.DiffUpstream(ctx, raw, checkArgs.UpstreamRef)
		if err != nil {
			return fmt.Errorf("diffing against upstream@%s: %w", checkArgs.UpstreamRef, err)
		}
		if diff == "" {
			fmt.Fprintf(env, "matches upstream@%s\n", checkArgs.UpstreamRef)
		} else {
			fmt.Fprintf(env, "differs from upstream@%s:\n%s", checkArgs.UpstreamRef, diff)
		}
	}

	report, err := ck.Check(ctx, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("checking zone: %w", err)
	}

	for _, m := range report.Mismatches {
		fmt.Fprintf(env, "line %d: %q maps to rules %v\n", m.Line, m.Rule, sortedKeys(m.Rules))
	}

	fmt.Fprintf(env, "checked %d rules, %d mismatches\n", report.Checked, len(report.Mismatches))
	if report.ChecksumMatch {
		fmt.Fprintln(env, "checksum matches zone")
	} else {
		fmt.Fprintf(env, "checksum mismatch: local %s, zone %s\n", report.LocalChecksum, report.RemoteChecksum)
	}

	if len(report.Mismatches) > 0 || !report.ChecksumMatch {
		return errors.New("file is out of sync with the zone")
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
