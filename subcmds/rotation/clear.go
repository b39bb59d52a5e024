// Copyright (c) 2025 BVK Chaitanya

package rotation

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/assign"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Clear struct {
	cmdutil.DBFlags
}

func (c *Clear) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("clear", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "clear", fset, cli.CmdFunc(c.run)
}

func (c *Clear) Purpose() string {
	return "Removes the active partner rotation of accounts"
}

func (c *Clear) Description() string {
	return `

Command "clear" removes the saved partner rotation of the accounts. Trades
already scheduled for the accounts are not affected; use "job cancel-account"
command to remove them.

`
}

func (c *Clear) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("this command takes one or more (account-id) arguments")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	store := assign.New(db)
	for _, id := range args {
		if err := store.Clear(ctx, id); err != nil {
			return fmt.Errorf("could not clear rotation of account %q: %w", id, err)
		}
	}
	return nil
}
