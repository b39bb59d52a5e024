// Copyright (c) 2025 BVK Chaitanya

package rotation

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/tradegroups/assign"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.DBFlags

	runID string
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.runID, "run-id", "", "prints rotations assigned by this scheduling run only")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints the active partner rotations of all accounts"
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

	stdout := cli.Stdout(ctx)
	print := func(ctx context.Context, v *gobs.TradeRotation) error {
		if len(c.runID) != 0 && v.RunID != c.runID {
			return nil
		}
		fmt.Fprintf(stdout, "%s\t%d\t%s\t%s\n", v.Account, len(v.Ranks), v.RunID, v.UpdateTime.Format(time.RFC3339))
		return nil
	}
	return assign.New(db).Scan(ctx, print)
}
