// Copyright (c) 2025 BVK Chaitanya

// Package orchestrator runs the end-to-end scheduling of trades: accounts are
// grouped into cohorts, every account gets a rotation of partners from it's
// cohort, rotations are saved and trade jobs are scheduled for each partner.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/cohort"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/scheduler"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RotationStore saves rotations.
type RotationStore interface {
	Persist(ctx context.Context, runID string, r *cohort.Rotation) error

	// GetRun returns the rotation saved for an account by the run. Returns an
	// error wrapping os.ErrNotExist when there is none.
	GetRun(ctx context.Context, runID, account string) (*cohort.Rotation, error)
}

// RotationScheduler schedules the trade jobs for a rotation.
type RotationScheduler interface {
	Schedule(ctx context.Context, runID string, r *cohort.Rotation, spacing time.Duration, attempts int) (*scheduler.Result, error)
}

// AccountLister lists accounts in a category.
type AccountLister interface {
	List(ctx context.Context, category string) ([]*gobs.AccountData, error)
}

type Orchestrator struct {
	db kv.Database

	store RotationStore
	sched RotationScheduler
}

// New creates an orchestrator. Run reports are saved in the database when db
// is non-nil.
func New(db kv.Database, store RotationStore, sched RotationScheduler) *Orchestrator {
	return &Orchestrator{
		db:    db,
		store: store,
		sched: sched,
	}
}

// RunAll schedules trades for all accounts in the category selected by the
// options.
func (o *Orchestrator) RunAll(ctx context.Context, lister AccountLister, opts *Options) (*RunReport, error) {
	if opts == nil {
		opts = new(Options)
	}
	list, err := lister.List(ctx, opts.Category)
	if err != nil {
		return nil, fmt.Errorf("could not list accounts in category %q: %w", opts.Category, err)
	}
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return o.Run(ctx, ids, opts)
}

// Run assigns rotations and schedules trades for the input accounts. Failures
// are recorded per account in the report and never stop the other accounts.
// When the context is canceled, accounts that are already in progress are
// completed and the remaining accounts are reported as SKIPPED.
func (o *Orchestrator) Run(ctx context.Context, ids []string, opts *Options) (*RunReport, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	rng := opts.Rand
	if rng == nil {
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	report := &RunReport{
		RunID:     opts.RunID,
		StartTime: time.Now(),
	}
	if len(report.RunID) == 0 {
		report.RunID = uuid.NewString()
	}

	seen := make(map[string]bool)
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := accounts.CheckID(id); err != nil {
			report.Outcomes = append(report.Outcomes, &AccountOutcome{Account: id, Status: INVALID, Err: err})
			continue
		}
		if seen[id] {
			report.Outcomes = append(report.Outcomes, &AccountOutcome{Account: id, Status: INVALID, Err: fmt.Errorf("account is repeated")})
			continue
		}
		seen[id] = true
		valid = append(valid, id)
	}
	report.NumAccounts = len(valid)

	if opts.ShuffleAccounts {
		cohort.Shuffle(valid, rng)
	}
	cohorts, err := cohort.Partition(valid, opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	report.NumCohorts = len(cohorts)

	slog.Info("starting scheduling run", "run", report.RunID, "accounts", len(valid), "cohorts", len(cohorts))

	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)

	// Rotations are generated here, in order, so that the random source is
	// used from a single goroutine.
	for _, members := range cohorts {
		for _, focal := range members {
			out := &AccountOutcome{Account: focal}
			report.Outcomes = append(report.Outcomes, out)

			if ctx.Err() != nil {
				out.Status, out.Err = SKIPPED, context.Cause(ctx)
				continue
			}

			rotation, err := cohort.Generate(focal, members, rng)
			if err != nil {
				out.Status, out.Err = INVALID, err
				continue
			}
			out.Partners = rotation.Len()

			g.Go(func() error {
				if ctx.Err() != nil {
					out.Status, out.Err = SKIPPED, context.Cause(ctx)
					return nil
				}
				o.assign(context.WithoutCancel(ctx), report.RunID, rotation, opts, out)
				return nil
			})
		}
	}
	g.Wait()

	report.FinishTime = time.Now()
	if o.db != nil {
		if err := SaveReport(context.WithoutCancel(ctx), o.db, report); err != nil {
			slog.Error("could not save run report (ignored)", "run", report.RunID, "err", err)
		}
	}

	slog.Info("finished scheduling run", "run", report.RunID, "assigned", report.Count(ASSIGNED), "failed", len(report.Failed()), "duration", report.FinishTime.Sub(report.StartTime))
	if ctx.Err() != nil {
		return report, context.Cause(ctx)
	}
	return report, nil
}

// assign saves the rotation and schedules it's trades. Trades are scheduled
// only after the rotation is saved. When the run has already saved a rotation
// for the account, the saved rotation is scheduled instead, so that repeating
// a run only adds the missing jobs.
func (o *Orchestrator) assign(ctx context.Context, runID string, r *cohort.Rotation, opts *Options, out *AccountOutcome) {
	old, err := o.store.GetRun(ctx, runID, r.Account)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("could not check for a saved rotation", "run", runID, "account", r.Account, "err", err)
		out.Status, out.Err = STORE_FAILED, err
		return
	}
	if old != nil {
		slog.Info("using the rotation saved earlier by the run", "run", runID, "account", r.Account)
		r = old
		out.Partners = r.Len()
	} else if err := o.store.Persist(ctx, runID, r); err != nil {
		slog.Error("could not save rotation", "run", runID, "account", r.Account, "err", err)
		out.Status, out.Err = STORE_FAILED, err
		return
	}

	result, err := o.sched.Schedule(ctx, runID, r, opts.Spacing, opts.MaxAttempts)
	if result != nil {
		out.JobIDs = result.JobIDs
	}
	if err != nil {
		slog.Error("could not schedule trades", "run", runID, "account", r.Account, "err", err)
		out.Status, out.Err = SCHEDULE_FAILED, err
		return
	}
	out.Status = ASSIGNED
}
