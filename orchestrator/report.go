// Copyright (c) 2025 BVK Chaitanya

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvkgo/kv"
	"go.uber.org/multierr"
)

const Keyspace = "/runs/"

type Status string

const (
	ASSIGNED        Status = "ASSIGNED"
	STORE_FAILED    Status = "STORE_FAILED"
	SCHEDULE_FAILED Status = "SCHEDULE_FAILED"
	SKIPPED         Status = "SKIPPED"
	INVALID         Status = "INVALID"
)

type AccountOutcome struct {
	Account string
	Status  Status
	Err     error

	// Partners is the number of partners in the account's rotation.
	Partners int

	JobIDs []string
}

// RunReport holds the per-account results of a scheduling run.
type RunReport struct {
	RunID string

	StartTime  time.Time
	FinishTime time.Time

	NumAccounts int
	NumCohorts  int

	Outcomes []*AccountOutcome
}

// Failed returns the outcomes of accounts that were not assigned.
func (r *RunReport) Failed() []*AccountOutcome {
	var failed []*AccountOutcome
	for _, v := range r.Outcomes {
		if v.Status != ASSIGNED {
			failed = append(failed, v)
		}
	}
	return failed
}

func (r *RunReport) Count(s Status) int {
	n := 0
	for _, v := range r.Outcomes {
		if v.Status == s {
			n++
		}
	}
	return n
}

// Err returns all per-account errors combined into one.
func (r *RunReport) Err() error {
	var err error
	for _, v := range r.Outcomes {
		if v.Err != nil {
			err = multierr.Append(err, fmt.Errorf("account %q: %s: %w", v.Account, v.Status, v.Err))
		}
	}
	return err
}

func (r *RunReport) toGob() *gobs.RunData {
	v := &gobs.RunData{
		RunID:       r.RunID,
		StartTime:   r.StartTime,
		FinishTime:  r.FinishTime,
		NumAccounts: r.NumAccounts,
		NumCohorts:  r.NumCohorts,
	}
	for _, o := range r.Outcomes {
		a := &gobs.AccountOutcome{
			Account: o.Account,
			Status:  string(o.Status),
			JobIDs:  o.JobIDs,
		}
		if o.Err != nil {
			a.Error = o.Err.Error()
		}
		v.Outcomes = append(v.Outcomes, a)
	}
	return v
}

func fromGob(v *gobs.RunData) *RunReport {
	r := &RunReport{
		RunID:       v.RunID,
		StartTime:   v.StartTime,
		FinishTime:  v.FinishTime,
		NumAccounts: v.NumAccounts,
		NumCohorts:  v.NumCohorts,
	}
	for _, a := range v.Outcomes {
		o := &AccountOutcome{
			Account: a.Account,
			Status:  Status(a.Status),
			JobIDs:  a.JobIDs,
		}
		if len(a.Error) != 0 {
			o.Err = errors.New(a.Error)
		}
		r.Outcomes = append(r.Outcomes, o)
	}
	return r
}

// SaveReport saves the run report in the database.
func SaveReport(ctx context.Context, db kv.Database, r *RunReport) error {
	if err := kvutil.SetDB(ctx, db, path.Join(Keyspace, r.RunID), r.toGob()); err != nil {
		return fmt.Errorf("could not save report for run %q: %w", r.RunID, err)
	}
	return nil
}

// LoadReport loads a saved run report.
func LoadReport(ctx context.Context, db kv.Database, runID string) (*RunReport, error) {
	v, err := kvutil.GetDB[gobs.RunData](ctx, db, path.Join(Keyspace, runID))
	if err != nil {
		return nil, fmt.Errorf("could not load report for run %q: %w", runID, err)
	}
	return fromGob(v), nil
}

// ListReports returns all saved run reports.
func ListReports(ctx context.Context, db kv.Database) ([]*RunReport, error) {
	var reports []*RunReport
	collect := func(ctx context.Context, _ kv.Reader, _ string, v *gobs.RunData) error {
		reports = append(reports, fromGob(v))
		return nil
	}
	if err := kvutil.AscendDir(ctx, db, Keyspace, collect); err != nil {
		return nil, fmt.Errorf("could not scan run reports: %w", err)
	}
	return reports, nil
}
