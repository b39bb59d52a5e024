// Copyright (c) 2025 BVK Chaitanya

package cmdutil

import (
	"flag"

	"github.com/bvk/tradegroups/cohort"
	"github.com/bvk/tradegroups/orchestrator"
	"github.com/bvk/tradegroups/scheduler"
)

// ScheduleFlags holds the command-line options for a scheduling run.
type ScheduleFlags struct {
	opts orchestrator.Options
}

func (f *ScheduleFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&f.opts.Category, "category", "", "schedules only the accounts in this category")
	fset.IntVar(&f.opts.ChunkSize, "chunk-size", cohort.DefaultSize, "number of accounts in a cohort")
	fset.DurationVar(&f.opts.Spacing, "spacing", scheduler.DefaultSpacing, "time between consecutive trades of an account")
	fset.IntVar(&f.opts.MaxAttempts, "max-attempts", scheduler.DefaultMaxAttempts, "number of attempts for each trade")
	fset.IntVar(&f.opts.Concurrency, "schedule-concurrency", 4, "number of accounts scheduled in parallel")
	fset.BoolVar(&f.opts.ShuffleAccounts, "shuffle", false, "when true, accounts are shuffled before grouping into cohorts")
	fset.Int64Var(&f.opts.Seed, "seed", 0, "random seed for the rotations; zero picks a time based seed")
}

// Options returns a copy of the scheduling options.
func (f *ScheduleFlags) Options() *orchestrator.Options {
	opts := f.opts
	return &opts
}
