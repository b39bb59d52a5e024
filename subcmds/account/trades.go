// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/executor"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Trades struct {
	cmdutil.DBFlags
}

func (c *Trades) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("trades", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "trades", fset, cli.CmdFunc(c.run)
}

func (c *Trades) Purpose() string {
	return "Prints the executed trades of an account"
}

func (c *Trades) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (account-id) argument")
	}
	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	exec, err := executor.New(db, accounts.New(db), executor.LogTrader{}, nil)
	if err != nil {
		return err
	}
	records, err := exec.Records(ctx, args[0])
	if err != nil {
		return err
	}
	stdout := cli.Stdout(ctx)
	for _, r := range records {
		instruments := strings.Join(r.Instruments, ",")
		if r.NoOp {
			instruments = "-"
		}
		fmt.Fprintf(stdout, "%s\t%s\t%d\t%s\t%s\n", r.ExecuteTime.Format(time.RFC3339), r.Partner, r.Rank, instruments, r.JobUID)
	}
	return nil
}
