// Copyright (c) 2025 BVK Chaitanya

package rotation

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/tradegroups/assign"
	"github.com/bvk/tradegroups/cohort"
	"github.com/bvk/tradegroups/scheduler"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Get struct {
	cmdutil.DBFlags

	spacing time.Duration
}

func (c *Get) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.DurationVar(&c.spacing, "spacing", scheduler.DefaultSpacing, "trade spacing used to print the partner trade delays")
	return "get", fset, cli.CmdFunc(c.run)
}

func (c *Get) Purpose() string {
	return "Prints the active partner rotation of an account"
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (account-id) argument")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	store := assign.New(db)
	data, err := store.GetData(ctx, args[0])
	if err != nil {
		return err
	}
	r, err := cohort.FromRanks(data.Account, data.Ranks)
	if err != nil {
		return err
	}

	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "account %s run %s updated at %s\n", data.Account, data.RunID, data.UpdateTime.Format(time.RFC3339))
	for rank, p := range r.Partners {
		fmt.Fprintf(stdout, "%d\t%s\t+%s\n", rank, p, scheduler.Delay(rank, c.spacing))
	}
	return nil
}
