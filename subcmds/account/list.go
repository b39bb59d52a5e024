// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.DBFlags

	category string
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.category, "category", "", "prints only the accounts in this category")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints trading accounts"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}
	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	list, err := accounts.New(db).List(ctx, c.category)
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	for _, a := range list {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", a.ID, a.Category, time.Unix(a.CreateTime, 0).Format(time.RFC3339))
	}
	return nil
}
