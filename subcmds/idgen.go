// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/scheduler"
	"github.com/visvasity/cli"
)

type IDGen struct {
	count int
}

func (c *IDGen) run(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("this command takes two (run-id, account) arguments")
	}
	stdout := cli.Stdout(ctx)
	for rank, uid := range scheduler.JobUIDs(args[0], args[1], c.count) {
		fmt.Fprintf(stdout, "%d: %s\n", rank, uid)
	}
	return nil
}

func (c *IDGen) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("idgen", flag.ContinueOnError)
	fset.IntVar(&c.count, "count", 10, "number of job ids")
	return "idgen", fset, cli.CmdFunc(c.run)
}

func (c *IDGen) Purpose() string {
	return "Prints trade job ids of an account in a scheduling run"
}
