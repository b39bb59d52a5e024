// Copyright (c) 2025 BVK Chaitanya

package cmdutil

import (
	"context"
	"fmt"

	"github.com/bvk/tradegroups/orchestrator"
	"github.com/visvasity/cli"
)

// PrintReport writes per-account outcomes of a scheduling run to the command
// output.
func PrintReport(ctx context.Context, r *orchestrator.RunReport) {
	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "run %s: %d accounts in %d cohorts\n", r.RunID, r.NumAccounts, r.NumCohorts)
	for _, o := range r.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(stdout, "  %s %s %d jobs: %v\n", o.Account, o.Status, len(o.JobIDs), o.Err)
			continue
		}
		fmt.Fprintf(stdout, "  %s %s %d jobs\n", o.Account, o.Status, len(o.JobIDs))
	}
}
