// Copyright (c) 2025 BVK Chaitanya

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bvk/tradegroups/cohort"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/job"
	"github.com/bvkgo/kv/kvmemdb"
)

type fakeQueue struct {
	mu sync.Mutex

	specs []*job.Spec

	failRanks map[int64]bool
}

func (f *fakeQueue) Create(ctx context.Context, spec *job.Spec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRanks[spec.Order] {
		return "", fmt.Errorf("queue is unavailable")
	}
	f.specs = append(f.specs, spec)
	return spec.UID, nil
}

func (f *fakeQueue) Get(ctx context.Context, uid string) (*gobs.JobData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, spec := range f.specs {
		if spec.UID == uid {
			return &gobs.JobData{UID: spec.UID, Queue: spec.Queue, Payload: spec.Payload}, nil
		}
	}
	return nil, os.ErrNotExist
}

func TestSchedule(t *testing.T) {
	ctx := context.Background()
	fq := new(fakeQueue)
	s := New(fq)

	r := &cohort.Rotation{Account: "a", Partners: []string{"d", "b", "c"}}
	result, err := s.Schedule(ctx, "run1", r, DefaultSpacing, DefaultMaxAttempts)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.JobIDs) != 3 || len(fq.specs) != 3 {
		t.Fatalf("want 3 jobs, got %d", len(fq.specs))
	}

	for rank, spec := range fq.specs {
		if want := time.Duration(rank) * 20 * time.Minute; spec.Delay != want {
			t.Fatalf("rank %d: want delay %v, got %v", rank, want, spec.Delay)
		}
		if spec.Queue != "a" || spec.MaxAttempts != 2 {
			t.Fatalf("rank %d: unexpected spec %#v", rank, spec)
		}
		tj, err := gobs.Decode[gobs.TradeJob](spec.Payload)
		if err != nil {
			t.Fatal(err)
		}
		if tj.Account != "a" || tj.Partner != r.Partners[rank] || tj.Rank != rank {
			t.Fatalf("rank %d: unexpected payload %#v", rank, tj)
		}
	}
	if fq.specs[0].Delay != 0 {
		t.Fatalf("first trade must not be delayed")
	}
}

func TestScheduleEmpty(t *testing.T) {
	ctx := context.Background()
	fq := new(fakeQueue)
	s := New(fq)

	result, err := s.Schedule(ctx, "run1", &cohort.Rotation{Account: "a"}, DefaultSpacing, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.JobIDs) != 0 || len(fq.specs) != 0 {
		t.Fatalf("want no jobs, got %d", len(fq.specs))
	}
}

func TestSchedulePartialFailure(t *testing.T) {
	ctx := context.Background()
	fq := &fakeQueue{failRanks: map[int64]bool{1: true}}
	s := New(fq)

	r := &cohort.Rotation{Account: "a", Partners: []string{"b", "c", "d"}}
	result, err := s.Schedule(ctx, "run1", r, time.Minute, 2)
	if err == nil {
		t.Fatalf("want scheduling error")
	}
	if len(result.JobIDs) != 2 {
		t.Fatalf("want 2 scheduled jobs, got %d", len(result.JobIDs))
	}
	if len(result.Failed) != 1 || result.Failed[0].Partner != "c" || result.Failed[0].Rank != 1 {
		t.Fatalf("want failure for partner c, got %#v", result.Failed)
	}
}

func TestScheduleInvalid(t *testing.T) {
	ctx := context.Background()
	s := New(new(fakeQueue))

	r := &cohort.Rotation{Account: "a", Partners: []string{"b"}}
	if _, err := s.Schedule(ctx, "run1", r, -time.Minute, 2); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid, got %v", err)
	}
	if _, err := s.Schedule(ctx, "run1", r, time.Minute, 0); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid, got %v", err)
	}
	bad := &cohort.Rotation{Account: "a", Partners: []string{"a"}}
	if _, err := s.Schedule(ctx, "run1", bad, time.Minute, 2); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid, got %v", err)
	}
}

func TestScheduleTwice(t *testing.T) {
	ctx := context.Background()
	q, err := job.New(kvmemdb.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()
	s := New(q)

	r := &cohort.Rotation{Account: "a", Partners: []string{"b", "c"}}
	first, err := s.Schedule(ctx, "run1", r, time.Hour, 2)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Schedule(ctx, "run1", r, time.Hour, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.JobIDs) != 2 || first.JobIDs[0] != second.JobIDs[0] || first.JobIDs[1] != second.JobIDs[1] {
		t.Fatalf("want same job ids, got %v and %v", first.JobIDs, second.JobIDs)
	}

	var count int
	if err := q.Scan(ctx, func(context.Context, *gobs.JobData) error { count++; return nil }); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("want 2 jobs, got %d", count)
	}

	third, err := s.Schedule(ctx, "run2", r, time.Hour, 2)
	if err != nil {
		t.Fatal(err)
	}
	if third.JobIDs[0] == first.JobIDs[0] {
		t.Fatalf("different runs must use different job ids")
	}
}

func TestScheduleThreeAccountCohort(t *testing.T) {
	ctx := context.Background()

	groups, err := cohort.Partition([]string{"A", "B", "C"}, cohort.DefaultSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("want one cohort, got %d", len(groups))
	}
	r, err := cohort.Generate("A", groups[0], rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatal(err)
	}
	if r.Rank("A") != -1 || r.Rank("B") < 0 || r.Rank("C") < 0 || r.Len() != 2 {
		t.Fatalf("want B and C as partners of A, got %v", r.Partners)
	}

	fq := new(fakeQueue)
	if _, err := New(fq).Schedule(ctx, "run", r, 60*time.Second, DefaultMaxAttempts); err != nil {
		t.Fatal(err)
	}
	if len(fq.specs) != 2 {
		t.Fatalf("want 2 jobs, got %d", len(fq.specs))
	}
	if d := fq.specs[0].Delay.Milliseconds(); d != 0 {
		t.Fatalf("want 0ms, got %d", d)
	}
	if d := fq.specs[1].Delay.Milliseconds(); d != 60000 {
		t.Fatalf("want 60000ms, got %d", d)
	}
	for _, spec := range fq.specs {
		if spec.MaxAttempts != 2 {
			t.Fatalf("want 2 attempts, got %d", spec.MaxAttempts)
		}
	}
}

func TestScheduleRotationMismatch(t *testing.T) {
	ctx := context.Background()
	q, err := job.New(kvmemdb.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()
	s := New(q)

	r1 := &cohort.Rotation{Account: "a", Partners: []string{"b", "c", "d"}}
	if _, err := s.Schedule(ctx, "run1", r1, time.Hour, 2); err != nil {
		t.Fatal(err)
	}

	// Same run with a different order of partners must not be accepted as
	// already scheduled.
	r2 := &cohort.Rotation{Account: "a", Partners: []string{"c", "b", "d"}}
	result, err := s.Schedule(ctx, "run1", r2, time.Hour, 2)
	if !errors.Is(err, ErrRotationMismatch) {
		t.Fatalf("want ErrRotationMismatch, got %v", err)
	}
	if len(result.Failed) != 2 || len(result.JobIDs) != 1 {
		t.Fatalf("want 2 mismatched and 1 matching job, got %d and %d", len(result.Failed), len(result.JobIDs))
	}
	for _, f := range result.Failed {
		if f.Partner == "d" {
			t.Fatalf("partner d has the same rank in both rotations")
		}
	}

	var count int
	if err := q.Scan(ctx, func(context.Context, *gobs.JobData) error { count++; return nil }); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("want 3 jobs, got %d", count)
	}
}
