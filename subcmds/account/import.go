// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Import struct {
	cmdutil.DBFlags

	envFile string
}

func (c *Import) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("import", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.envFile, "env-file", "", "path to a dotenv file with the account secrets")
	return "import", fset, cli.CmdFunc(c.run)
}

func (c *Import) Purpose() string {
	return "Adds or updates trading accounts from a YAML manifest"
}

func (c *Import) Description() string {
	return `

Command "import" creates or updates accounts listed in a YAML manifest file:

  accounts:
    - id: acct-001
      category: gold
      instruments: [BTC-USD, ETH-USD]
      apiKey: KEY1234
      secretEnv: ACCT_001_SECRET

Secrets are read from the -env-file dotenv file or the process environment
using the secretEnv variable names.

`
}

func (c *Import) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (manifest file) argument")
	}

	fp, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("could not open manifest file: %w", err)
	}
	defer fp.Close()

	manifest, err := accounts.ParseManifest(fp)
	if err != nil {
		return err
	}
	lookup, err := accounts.LookupFunc(c.envFile)
	if err != nil {
		return err
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	result, err := accounts.New(db).Import(ctx, manifest, lookup)
	if result != nil {
		fmt.Fprintf(cli.Stdout(ctx), "added %d accounts, updated %d accounts\n", len(result.Added), len(result.Updated))
	}
	return err
}
