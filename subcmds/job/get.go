// Copyright (c) 2025 BVK Chaitanya

package job

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/scheduler"
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
	return "Prints a trade job with it's payload"
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (job-id) argument")
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

	jd, err := queue.Get(ctx, args[0])
	if err != nil {
		return err
	}
	tj, err := scheduler.DecodeTradeJob(jd)
	if err != nil {
		return err
	}

	v := struct {
		*gobs.JobData
		Payload *gobs.TradeJob
	}{jd, tj}
	jsdata, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintf(cli.Stdout(ctx), "%s\n", jsdata)
	return nil
}
