// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/assign"
	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/orchestrator"
	"github.com/bvk/tradegroups/scheduler"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Schedule struct {
	cmdutil.DBFlags
	cmdutil.ScheduleFlags

	runID string
}

func (c *Schedule) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("schedule", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	c.ScheduleFlags.SetFlags(fset)
	fset.StringVar(&c.runID, "run-id", "", "id for the scheduling run; reusing a run id doesn't duplicate jobs")
	return "schedule", fset, cli.CmdFunc(c.run)
}

func (c *Schedule) Purpose() string {
	return "Assigns partner rotations to accounts and schedules their trades"
}

func (c *Schedule) Description() string {
	return `

Command "schedule" groups accounts into cohorts, assigns every account a
random rotation of partners from it's cohort and schedules one trade job for
each partner. Trade jobs are executed by the "run" command.

When explicit account ids are given as arguments, only those accounts are
scheduled; otherwise all accounts in the -category are scheduled. A failed
scheduling run can be repeated with the same -run-id to schedule the missing
jobs without creating duplicates.

`
}

func (c *Schedule) run(ctx context.Context, args []string) error {
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

	opts := c.ScheduleFlags.Options()
	opts.RunID = c.runID

	orch := orchestrator.New(db, assign.New(db), scheduler.New(queue))

	var report *orchestrator.RunReport
	if len(args) == 0 {
		report, err = orch.RunAll(ctx, accounts.New(db), opts)
	} else {
		report, err = orch.Run(ctx, args, opts)
	}
	if report != nil {
		cmdutil.PrintReport(ctx, report)
	}
	if err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("could not schedule %d accounts: %w", len(failed), report.Err())
	}
	return nil
}
