// Copyright (c) 2023 BVK Chaitanya

package job

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type List struct {
	cmdutil.DBFlags

	queue string
	state string
	all   bool
}

func (c *List) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.queue, "account", "", "prints jobs of this account only")
	fset.StringVar(&c.state, "state", "", "prints jobs in this state only")
	fset.BoolVar(&c.all, "all", false, "when true, also prints finished jobs")
	return "list", fset, cli.CmdFunc(c.run)
}

func (c *List) Purpose() string {
	return "Prints trade jobs"
}

func (c *List) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
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
	print := func(ctx context.Context, jd *gobs.JobData) error {
		if len(c.queue) != 0 && jd.Queue != c.queue {
			return nil
		}
		if len(c.state) != 0 && jd.State != c.state {
			return nil
		}
		if len(c.state) == 0 && !c.all && job.IsDone(job.State(jd.State)) {
			return nil
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s\t%s\t%d/%d\n", jd.UID, jd.Queue, jd.State, jd.RunAt.Format(time.RFC3339), jd.Attempts, jd.MaxAttempts)
		return nil
	}
	return queue.Scan(ctx, print)
}
