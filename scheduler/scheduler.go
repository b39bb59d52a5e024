// Copyright (c) 2025 BVK Chaitanya

// Package scheduler turns an account's partner rotation into delayed trade
// jobs, one per partner, spaced apart by their rank.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bvk/tradegroups/cohort"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/idgen"
	"github.com/bvk/tradegroups/job"
	"go.uber.org/multierr"
)

// DefaultSpacing is the time between consecutive trades of an account.
const DefaultSpacing = 20 * time.Minute

// ErrRotationMismatch is returned when a run already has trade jobs scheduled
// for a different rotation of the account.
var ErrRotationMismatch = errors.New("rotation does not match scheduled jobs")

// DefaultMaxAttempts is the number of times a trade job is tried.
const DefaultMaxAttempts = 2

// JobCreator is the job queue api used by the scheduler.
type JobCreator interface {
	Create(ctx context.Context, spec *job.Spec) (string, error)
	Get(ctx context.Context, uid string) (*gobs.JobData, error)
}

type Scheduler struct {
	jobs JobCreator
}

func New(jobs JobCreator) *Scheduler {
	return &Scheduler{jobs: jobs}
}

type Failure struct {
	Partner string
	Rank    int
	Err     error
}

type Result struct {
	Account string

	// JobIDs holds the job ids for the scheduled partners in rank order.
	JobIDs []string

	Failed []*Failure
}

// JobUIDs returns the job ids used for an account's rotation in a run. Ids are
// derived from the account and run id, so scheduling the same rotation again
// in a run doesn't create duplicate jobs.
func JobUIDs(runID, account string, n int) []string {
	return idgen.New(account+"/"+runID, 0).Take(n)
}

// Delay returns the delay for a trade with the given rank. First partner is
// traded with immediately.
func Delay(rank int, spacing time.Duration) time.Duration {
	return time.Duration(rank) * spacing
}

// Schedule creates one delayed job per partner in the rotation. Job for the
// partner with rank k is delayed by k*spacing. Failure to create a job doesn't
// stop the remaining jobs from being created; all failures are reported in the
// result and also combined into the returned error.
func (s *Scheduler) Schedule(ctx context.Context, runID string, r *cohort.Rotation, spacing time.Duration, attempts int) (*Result, error) {
	if spacing < 0 {
		return nil, fmt.Errorf("trade spacing cannot be negative: %w", os.ErrInvalid)
	}
	if attempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive: %w", os.ErrInvalid)
	}
	if len(runID) == 0 {
		return nil, fmt.Errorf("run id cannot be empty: %w", os.ErrInvalid)
	}
	if err := r.Check(); err != nil {
		return nil, err
	}

	result := &Result{Account: r.Account}
	uids := JobUIDs(runID, r.Account, r.Len())

	var errs error
	for rank, partner := range r.Partners {
		tj := &gobs.TradeJob{
			RunID:       runID,
			Account:     r.Account,
			Partner:     partner,
			Rank:        rank,
			Offset:      Delay(rank, spacing),
			MaxAttempts: attempts,
		}
		payload, err := gobs.Encode(tj)
		if err != nil {
			return nil, fmt.Errorf("could not encode trade job: %w", err)
		}

		spec := &job.Spec{
			UID:         uids[rank],
			Queue:       r.Account,
			Payload:     payload,
			Delay:       tj.Offset,
			Order:       int64(rank),
			MaxAttempts: attempts,
		}
		if _, err := s.jobs.Create(ctx, spec); err != nil {
			if errors.Is(err, os.ErrExist) {
				err = s.checkExisting(ctx, spec.UID, tj)
			}
			if err != nil {
				slog.Error("could not schedule trade job", "account", r.Account, "partner", partner, "rank", rank, "err", err)
				result.Failed = append(result.Failed, &Failure{Partner: partner, Rank: rank, Err: err})
				errs = multierr.Append(errs, fmt.Errorf("partner %q at rank %d: %w", partner, rank, err))
				continue
			}
			slog.Info("trade job is already scheduled", "account", r.Account, "partner", partner, "uid", spec.UID)
		}
		result.JobIDs = append(result.JobIDs, spec.UID)
	}

	if errs != nil {
		return result, fmt.Errorf("could not schedule %d of %d trades for %q: %w", len(result.Failed), r.Len(), r.Account, errs)
	}
	return result, nil
}

// checkExisting verifies that an already scheduled job with the same uid
// trades with the same partner at the same rank. A different rotation for the
// same run would otherwise trade with some partners twice and skip others.
func (s *Scheduler) checkExisting(ctx context.Context, uid string, want *gobs.TradeJob) error {
	jd, err := s.jobs.Get(ctx, uid)
	if err != nil {
		return fmt.Errorf("could not load existing job %q: %w", uid, err)
	}
	old, err := DecodeTradeJob(jd)
	if err != nil {
		return err
	}
	if old.Account != want.Account || old.Partner != want.Partner || old.Rank != want.Rank {
		return fmt.Errorf("job %q is already scheduled with partner %q at rank %d: %w", uid, old.Partner, old.Rank, ErrRotationMismatch)
	}
	return nil
}

// DecodeTradeJob extracts the trade job from a job's payload.
func DecodeTradeJob(jd *gobs.JobData) (*gobs.TradeJob, error) {
	tj, err := gobs.Decode[gobs.TradeJob](jd.Payload)
	if err != nil {
		return nil, fmt.Errorf("could not decode trade job payload in %q: %w", jd.UID, err)
	}
	return tj, nil
}
