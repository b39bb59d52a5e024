// Copyright (c) 2025 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/visvasity/topic"
)

func newTestQueue(t *testing.T) *Queue {
	q, err := New(kvmemdb.New(), &Options{RetryDelay: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func subscribe(t *testing.T, q *Queue) <-chan *Event {
	r, err := q.Subscribe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Close)
	ch, err := topic.ReceiveCh(r)
	if err != nil {
		t.Fatal(err)
	}
	return ch
}

func waitEvents(t *testing.T, ch <-chan *Event, n int) map[string]*Event {
	events := make(map[string]*Event)
	timeout := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case e := <-ch:
			events[e.UID] = e
		case <-timeout:
			t.Fatalf("want %d events, got %d", n, len(events))
		}
	}
	return events
}

func startProcess(t *testing.T, q *Queue, concurrency int, h Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := q.Process(ctx, concurrency, h); err != nil {
			t.Errorf("process: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestQueueOrder(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	delays := map[string]time.Duration{
		"j1": 30 * time.Millisecond,
		"j2": 10 * time.Millisecond,
		"j3": 20 * time.Millisecond,
	}
	for _, uid := range []string{"j1", "j2", "j3"} {
		spec := &Spec{UID: uid, Queue: "a", Delay: delays[uid], MaxAttempts: 1}
		if _, err := q.Create(ctx, spec); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	var order []string
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		mu.Lock()
		order = append(order, jd.UID)
		mu.Unlock()
		return nil
	}
	startProcess(t, q, 4, handler)

	for uid, e := range waitEvents(t, events, 3) {
		if e.State != COMPLETED {
			t.Fatalf("job %s: want COMPLETED, got %s", uid, e.State)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []string{"j2", "j3", "j1"}; !slices.Equal(order, want) {
		t.Fatalf("want %v, got %v", want, order)
	}
}

func TestQueueDelay(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	var runAt atomic.Int64
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		runAt.Store(time.Now().UnixNano())
		return nil
	}
	startProcess(t, q, 1, handler)

	start := time.Now()
	if _, err := q.Create(ctx, &Spec{Queue: "a", Delay: 50 * time.Millisecond, MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}
	waitEvents(t, events, 1)

	if d := time.Duration(runAt.Load() - start.UnixNano()); d < 50*time.Millisecond {
		t.Fatalf("job executed too early after %v", d)
	}
}

func TestQueueRetry(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	var calls atomic.Int32
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		if calls.Add(1) == 1 {
			return fmt.Errorf("transient failure")
		}
		return nil
	}
	startProcess(t, q, 1, handler)

	uid, err := q.Create(ctx, &Spec{Queue: "a", MaxAttempts: 2})
	if err != nil {
		t.Fatal(err)
	}
	e := waitEvents(t, events, 1)[uid]
	if e.State != COMPLETED || e.Attempts != 2 {
		t.Fatalf("want COMPLETED after 2 attempts, got %s after %d", e.State, e.Attempts)
	}
}

func TestQueueExhausted(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	var calls atomic.Int32
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		calls.Add(1)
		return fmt.Errorf("always fails")
	}
	startProcess(t, q, 1, handler)

	uid, err := q.Create(ctx, &Spec{Queue: "a", MaxAttempts: 2})
	if err != nil {
		t.Fatal(err)
	}
	e := waitEvents(t, events, 1)[uid]
	if e.State != FAILED {
		t.Fatalf("want FAILED, got %s", e.State)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("want 2 attempts, got %d", n)
	}

	jd, err := q.Get(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if jd.State != string(FAILED) || jd.LastError != "always fails" {
		t.Fatalf("want saved failure, got %s (%s)", jd.State, jd.LastError)
	}
}

func TestQueueFatal(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	var calls atomic.Int32
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		calls.Add(1)
		return fmt.Errorf("no credentials: %w", ErrFatal)
	}
	startProcess(t, q, 1, handler)

	uid, err := q.Create(ctx, &Spec{Queue: "a", MaxAttempts: 5})
	if err != nil {
		t.Fatal(err)
	}
	if e := waitEvents(t, events, 1)[uid]; e.State != FAILED || e.Attempts != 1 {
		t.Fatalf("want FAILED after 1 attempt, got %s after %d", e.State, e.Attempts)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("want 1 attempt, got %d", n)
	}
}

func TestQueueDuplicate(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if _, err := q.Create(ctx, &Spec{UID: "x", Queue: "a", MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Create(ctx, &Spec{UID: "x", Queue: "a", MaxAttempts: 1}); !errors.Is(err, os.ErrExist) {
		t.Fatalf("want os.ErrExist, got %v", err)
	}
	if _, err := q.Create(ctx, &Spec{Queue: "", MaxAttempts: 1}); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid, got %v", err)
	}
	if _, err := q.Create(ctx, &Spec{Queue: "a", MaxAttempts: 0}); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid, got %v", err)
	}
}

func TestQueueSequentialPartition(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	release := make(chan struct{})
	started := make(chan string, 3)
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		started <- jd.UID
		if jd.UID == "a1" {
			<-release
		}
		return nil
	}

	for i, uid := range []string{"a1", "a2"} {
		if _, err := q.Create(ctx, &Spec{UID: uid, Queue: "a", Order: int64(i), MaxAttempts: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := q.Create(ctx, &Spec{UID: "b1", Queue: "b", MaxAttempts: 1}); err != nil {
		t.Fatal(err)
	}
	startProcess(t, q, 4, handler)

	seen := make(map[string]bool)
	for len(seen) < 2 {
		select {
		case uid := <-started:
			seen[uid] = true
		case <-time.After(5 * time.Second):
			t.Fatalf("jobs did not start: %v", seen)
		}
	}
	if !seen["a1"] || !seen["b1"] {
		t.Fatalf("want a1 and b1 to run concurrently, got %v", seen)
	}

	select {
	case uid := <-started:
		t.Fatalf("job %s must wait for a1 to finish", uid)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	waitEvents(t, events, 3)
}

func TestQueueRecovery(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	interrupted := &gobs.JobData{
		UID:         "x",
		Queue:       "a",
		RunAt:       time.Now(),
		MaxAttempts: 1,
		Attempts:    1,
		State:       string(RUNNING),
	}
	if err := kvutil.SetDB(ctx, db, "/jobs/x", interrupted); err != nil {
		t.Fatal(err)
	}

	q, err := New(db, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()
	events := subscribe(t, q)

	startProcess(t, q, 1, func(ctx context.Context, jd *gobs.JobData) error { return nil })

	if e := waitEvents(t, events, 1)["x"]; e.State != COMPLETED || e.Attempts != 1 {
		t.Fatalf("want COMPLETED after 1 attempt, got %s after %d", e.State, e.Attempts)
	}
}

func TestQueueShutdown(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	started := make(chan struct{})
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		close(started)
		<-ctx.Done()
		return context.Cause(ctx)
	}

	uid, err := q.Create(ctx, &Spec{Queue: "a", MaxAttempts: 1})
	if err != nil {
		t.Fatal(err)
	}

	pctx, pcancel := context.WithCancel(ctx)
	done := make(chan error)
	go func() { done <- q.Process(pctx, 1, handler) }()

	<-started
	pcancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	jd, err := q.Get(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if jd.State != string(PENDING) || jd.Attempts != 0 {
		t.Fatalf("want PENDING with no attempts, got %s with %d", jd.State, jd.Attempts)
	}
}

func TestQueueCancel(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	var uids []string
	for i := 0; i < 3; i++ {
		uid, err := q.Create(ctx, &Spec{Queue: "a", Delay: time.Hour, MaxAttempts: 1})
		if err != nil {
			t.Fatal(err)
		}
		uids = append(uids, uid)
	}
	other, err := q.Create(ctx, &Spec{Queue: "b", Delay: time.Hour, MaxAttempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	startProcess(t, q, 1, func(ctx context.Context, jd *gobs.JobData) error { return nil })

	state, err := q.Cancel(ctx, uids[0])
	if err != nil {
		t.Fatal(err)
	}
	if state != CANCELED {
		t.Fatalf("want CANCELED, got %s", state)
	}

	canceled, err := q.CancelQueue(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(canceled) != 2 {
		t.Fatalf("want 2 canceled jobs, got %v", canceled)
	}

	jd, err := q.Get(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if jd.State != string(PENDING) {
		t.Fatalf("job in other queue must be pending, got %s", jd.State)
	}

	if _, err := q.Cancel(ctx, "missing"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want os.ErrNotExist, got %v", err)
	}
}

func TestQueueCancelRunning(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	started := make(chan struct{})
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		close(started)
		<-ctx.Done()
		return context.Cause(ctx)
	}
	startProcess(t, q, 1, handler)

	uid, err := q.Create(ctx, &Spec{Queue: "a", MaxAttempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	if _, err := q.Cancel(ctx, uid); err != nil {
		t.Fatal(err)
	}
	if e := waitEvents(t, events, 1)[uid]; e.State != CANCELED {
		t.Fatalf("want CANCELED, got %s", e.State)
	}
	jd, err := q.Get(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if jd.State != string(CANCELED) {
		t.Fatalf("want CANCELED, got %s", jd.State)
	}
}

func TestQueueCancelAfterSuccess(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	events := subscribe(t, q)

	started := make(chan struct{})
	handler := func(ctx context.Context, jd *gobs.JobData) error {
		close(started)
		<-ctx.Done()
		// Work is already done, so cancellation is ignored.
		return nil
	}
	startProcess(t, q, 1, handler)

	uid, err := q.Create(ctx, &Spec{Queue: "a", MaxAttempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	<-started
	state, err := q.Cancel(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if state != COMPLETED {
		t.Fatalf("want COMPLETED, got %s", state)
	}
	if e := waitEvents(t, events, 1)[uid]; e.State != COMPLETED {
		t.Fatalf("want COMPLETED, got %s", e.State)
	}
	jd, err := q.Get(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if jd.State != string(COMPLETED) {
		t.Fatalf("want COMPLETED, got %s", jd.State)
	}
}
