// Copyright (c) 2025 BVK Chaitanya

package orchestrator

import (
	"errors"
	"os"
	"time"

	"github.com/bvk/tradegroups/cohort"
	"github.com/bvk/tradegroups/scheduler"
	"go.uber.org/multierr"
)

type Options struct {
	// RunID identifies the scheduling run. A random id is used when empty.
	RunID string

	// Category selects the accounts when accounts are listed from the store.
	Category string

	ChunkSize int

	// Spacing is the time between consecutive trades of an account. Zero
	// schedules all trades immediately; see scheduler.DefaultSpacing for the
	// usual value.
	Spacing time.Duration

	MaxAttempts int

	// Concurrency limits the number of accounts processed in parallel.
	Concurrency int

	// ShuffleAccounts when true randomizes the cohort membership.
	ShuffleAccounts bool

	// Seed initializes the random source when Rand is nil. Zero picks a time
	// based seed.
	Seed int64

	Rand cohort.RandomSource
}

func (v *Options) setDefaults() {
	if v.ChunkSize == 0 {
		v.ChunkSize = cohort.DefaultSize
	}
	if v.MaxAttempts == 0 {
		v.MaxAttempts = scheduler.DefaultMaxAttempts
	}
	if v.Concurrency == 0 {
		v.Concurrency = 4
	}
}

func (v *Options) Check() (err error) {
	if v.ChunkSize <= 0 {
		err = multierr.Append(err, errors.New("chunk size must be positive"))
	}
	if v.Spacing < 0 {
		err = multierr.Append(err, errors.New("spacing cannot be negative"))
	}
	if v.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("max attempts must be positive"))
	}
	if v.Concurrency <= 0 {
		err = multierr.Append(err, errors.New("concurrency must be positive"))
	}
	if err != nil {
		err = multierr.Append(err, os.ErrInvalid)
	}
	return err
}
