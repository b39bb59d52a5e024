// Copyright (c) 2025 BVK Chaitanya

// Package job implements a persistent queue of delayed jobs. Jobs are grouped
// into named queues; jobs in the same queue are executed one at a time in the
// order of their scheduled time while different queues make progress
// concurrently.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bvk/tradegroups/gobs"
)

const Keyspace = "/jobs/"

type State string

const (
	PENDING   State = "PENDING"
	RUNNING   State = "RUNNING"
	COMPLETED State = "COMPLETED"
	CANCELED  State = "CANCELED"
	FAILED    State = "FAILED"
)

func IsDone(s State) bool {
	return s == COMPLETED || s == CANCELED || s == FAILED
}

// ErrFatal when wrapped by a handler's return value marks the job as failed
// without any further retries.
var ErrFatal = errors.New("fatal job error")

var errCanceled = errors.New("job is canceled")

// Handler executes a job. Returning nil completes the job and returning a
// non-nil error schedules a retry as long as attempts are available.
type Handler func(ctx context.Context, data *gobs.JobData) error

// Spec describes a new job.
type Spec struct {
	// UID is the job id. A random id is picked when empty. Creating a job with
	// an existing id fails with os.ErrExist.
	UID string

	// Queue is the name of the queue that job belongs to.
	Queue string

	Payload []byte

	// Delay is the minimum duration before the job is executed.
	Delay time.Duration

	// Order breaks ties between jobs of a queue with the same scheduled time.
	Order int64

	// MaxAttempts is the number of times job is executed before giving up.
	MaxAttempts int
}

func (s *Spec) Check() error {
	if len(s.Queue) == 0 {
		return fmt.Errorf("job queue name cannot be empty: %w", os.ErrInvalid)
	}
	if s.Delay < 0 {
		return fmt.Errorf("job delay cannot be negative: %w", os.ErrInvalid)
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("job max attempts must be positive: %w", os.ErrInvalid)
	}
	return nil
}

// Event is published when a job reaches a final state.
type Event struct {
	UID   string
	Queue string

	State    State
	Attempts int

	Error string
}

func compareJobs(a, b *gobs.JobData) int {
	if c := a.RunAt.Compare(b.RunAt); c != 0 {
		return c
	}
	if a.Seq != b.Seq {
		if a.Seq < b.Seq {
			return -1
		}
		return 1
	}
	switch {
	case a.UID < b.UID:
		return -1
	case a.UID > b.UID:
		return 1
	}
	return 0
}
