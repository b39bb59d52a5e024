// Copyright (c) 2023 BVK Chaitanya

package job

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Cancel struct {
	cmdutil.DBFlags
}

func (c *Cancel) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("cancel", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "cancel", fset, cli.CmdFunc(c.run)
}

func (c *Cancel) Purpose() string {
	return "Cancels trade jobs"
}

func (c *Cancel) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("this command takes one or more (job-id) arguments")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return fmt.Errorf("could not create database client: %w", err)
	}
	defer closer()

	queue, err := job.New(db, nil)
	if err != nil {
		return err
	}
	defer queue.Close()

	stdout := cli.Stdout(ctx)
	for _, uid := range args {
		state, err := queue.Cancel(ctx, uid)
		if err != nil {
			return fmt.Errorf("could not cancel job %q: %w", uid, err)
		}
		fmt.Fprintf(stdout, "%s\t%s\n", uid, state)
	}
	return nil
}

type CancelAccount struct {
	cmdutil.DBFlags
}

func (c *CancelAccount) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("cancel-account", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "cancel-account", fset, cli.CmdFunc(c.run)
}

func (c *CancelAccount) Purpose() string {
	return "Cancels all pending trade jobs of an account"
}

func (c *CancelAccount) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (account-id) argument")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return fmt.Errorf("could not create database client: %w", err)
	}
	defer closer()

	queue, err := job.New(db, nil)
	if err != nil {
		return err
	}
	defer queue.Close()

	uids, err := queue.CancelQueue(ctx, args[0])
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	for _, uid := range uids {
		fmt.Fprintln(stdout, uid)
	}
	return nil
}
