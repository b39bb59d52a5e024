// Copyright (c) 2025 BVK Chaitanya

package runs

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/tradegroups/orchestrator"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.DBFlags
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints the summary of all scheduling runs"
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

	reports, err := orchestrator.ListReports(ctx, db)
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	for _, r := range reports {
		fmt.Fprintf(stdout, "%s\t%s\t%s\taccounts=%d cohorts=%d assigned=%d failed=%d\n",
			r.RunID, r.StartTime.Format(time.RFC3339), r.FinishTime.Sub(r.StartTime).Round(time.Millisecond),
			r.NumAccounts, r.NumCohorts, r.Count(orchestrator.ASSIGNED), len(r.Failed()))
	}
	return nil
}
