// Copyright (c) 2025 BVK Chaitanya

package runs

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/orchestrator"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Get struct {
	cmdutil.DBFlags
}

func (c *Get) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "get", fset, cli.CmdFunc(c.run)
}

func (c *Get) Purpose() string {
	return "Prints per-account outcomes of a scheduling run"
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (run-id) argument")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	report, err := orchestrator.LoadReport(ctx, db, args[0])
	if err != nil {
		return err
	}
	cmdutil.PrintReport(ctx, report)
	return nil
}
