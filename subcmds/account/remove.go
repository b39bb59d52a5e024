// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/assign"
	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Remove struct {
	cmdutil.DBFlags
}

func (c *Remove) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("remove", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "remove", fset, cli.CmdFunc(c.run)
}

func (c *Remove) Purpose() string {
	return "Removes a trading account with it's rotation and pending trades"
}

func (c *Remove) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (account-id) argument")
	}
	id := args[0]

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	queue, err := job.New(db, nil)
	if err != nil {
		return err
	}
	defer queue.Close()

	canceled, err := queue.CancelQueue(ctx, id)
	if err != nil {
		return err
	}
	if err := assign.New(db).Clear(ctx, id); err != nil {
		return err
	}
	if err := accounts.New(db).Remove(ctx, id); err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "removed account %s and canceled %d pending trades\n", id, len(canceled))
	return nil
}
