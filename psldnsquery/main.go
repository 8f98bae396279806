// psldnsquery looks up a single domain's public suffix through a
// running psldns zone.
package main

import (
	"context"
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

	"github.com/publicsuffix/psldns/internal/client"
)

func main() {
	log.SetFlags(0)

	root := &command.C{
		Name:  filepath.Base(os.Args[0]),
		Usage: "<domain> --resolver HOST [flags]",
		Help: `Look up a domain's public suffix through a running psldns zone.

Exits 0 if the domain is itself a public suffix, 1 if it is a private
domain under one, or 2 if the zone has no answer for it.`,
		SetFlags: command.Flags(flax.MustBind, &queryArgs),
		Run:      command.Adapt(runQuery),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx).MergeFlags(true)
	command.RunOrFail(env, os.Args[1:])
}

var queryArgs struct {
	Resolver string        `flag:"resolver,Resolver address (host:port) to query"`
	Zone     string        `flag:"zone,default=query.publicsuffix.zone,FQDN of the zone apex to query under"`
	Timeout  time.Duration `flag:"timeout,default=5s,Per-query timeout"`
	List     bool          `flag:"l,Also print the full set of rules that apply to the domain"`
	Checksum bool          `flag:"c,Also print the zone's published checksum"`
}

func runQuery(env *command.Env, d string) error {
	if queryArgs.Resolver == "" {
		return fmt.Errorf("--resolver is required")
	}

	c := client.New(queryArgs.Resolver, queryArgs.Zone, client.WithTimeout(queryArgs.Timeout))
	ctx := env.Context()

	if queryArgs.Checksum {
		hexDigest, ok, err := c.GetChecksum(ctx)
		if err != nil {
			return err
		}
		if ok {
			fmt.Fprintf(env, "checksum %s\n", hexDigest)
		} else {
			fmt.Fprintln(env, "checksum unavailable")
		}
	}

	if queryArgs.List {
		rules, err := c.GetRules(ctx, d)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(rules))
		for k := range rules {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(env, "rules %v\n", keys)
	}

	suffix, err := c.GetPublicSuffix(ctx, d)
	if err != nil {
		if _, ok := err.(client.UnsupportedRuleError); ok {
			fmt.Fprintln(env, "unknown")
			os.Exit(2)
		}
		return err
	}

	isPublic, err := c.IsPublicSuffix(ctx, d)
	if err != nil {
		return err
	}

	if isPublic {
		fmt.Fprintf(env, "public %s\n", suffix)
		os.Exit(0)
	}
	fmt.Fprintf(env, "private %s\n", suffix)
	os.Exit(1)
	return nil
}
