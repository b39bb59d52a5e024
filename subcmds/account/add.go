// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Add struct {
	cmdutil.DBFlags

	category string
}

func (c *Add) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("add", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.category, "category", "", "account category")
	return "add", fset, cli.CmdFunc(c.run)
}

func (c *Add) Purpose() string {
	return "Adds new trading accounts"
}

func (c *Add) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("this command takes one or more (account-id) arguments")
	}
	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	store := accounts.New(db)
	for _, id := range args {
		if err := store.Add(ctx, id, c.category); err != nil {
			return err
		}
	}
	return nil
}
