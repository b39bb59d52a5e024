// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/assign"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/orchestrator"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type Status struct {
	cmdutil.DBFlags
}

func (c *Status) Purpose() string {
	return "Status prints global summary of accounts, rotations and trade jobs"
}

func (c *Status) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("status", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "status", fset, cli.CmdFunc(c.run)
}

func (c *Status) run(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("this command takes no arguments")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	list, err := accounts.New(db).List(ctx, "")
	if err != nil {
		return err
	}
	categoryMap := make(map[string]int)
	for _, a := range list {
		categoryMap[a.Category]++
	}

	nrotations := 0
	countRotations := func(ctx context.Context, _ *gobs.TradeRotation) error {
		nrotations++
		return nil
	}
	if err := assign.New(db).Scan(ctx, countRotations); err != nil {
		return err
	}

	queue, err := job.New(db, nil)
	if err != nil {
		return err
	}
	defer queue.Close()

	stateMap := make(map[string]int)
	var nextRunAt time.Time
	countJobs := func(ctx context.Context, jd *gobs.JobData) error {
		stateMap[jd.State]++
		if jd.State == string(job.PENDING) && (nextRunAt.IsZero() || jd.RunAt.Before(nextRunAt)) {
			nextRunAt = jd.RunAt
		}
		return nil
	}
	if err := queue.Scan(ctx, countJobs); err != nil {
		return err
	}

	reports, err := orchestrator.ListReports(ctx, db)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.Stdout(ctx), 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "Accounts\t%d\n", len(list))
	categories := make([]string, 0, len(categoryMap))
	for k := range categoryMap {
		categories = append(categories, k)
	}
	slices.Sort(categories)
	for _, k := range categories {
		name := k
		if len(name) == 0 {
			name = "(none)"
		}
		fmt.Fprintf(tw, "  %s\t%d\n", name, categoryMap[k])
	}
	fmt.Fprintf(tw, "Rotations\t%d\n", nrotations)
	fmt.Fprintf(tw, "Jobs\t\n")
	for _, s := range []job.State{job.PENDING, job.RUNNING, job.COMPLETED, job.CANCELED, job.FAILED} {
		fmt.Fprintf(tw, "  %s\t%d\n", s, stateMap[string(s)])
	}
	if !nextRunAt.IsZero() {
		fmt.Fprintf(tw, "Next trade\t%s\n", nextRunAt.Format(time.RFC3339))
	}
	if len(reports) > 0 {
		last := slices.MaxFunc(reports, func(a, b *orchestrator.RunReport) int {
			return a.StartTime.Compare(b.StartTime)
		})
		fmt.Fprintf(tw, "Last run\t%s at %s (%d assigned, %d failed)\n", last.RunID, last.StartTime.Format(time.RFC3339), last.Count(orchestrator.ASSIGNED), len(last.Failed()))
	}
	return tw.Flush()
}
