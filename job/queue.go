// Copyright (c) 2025 BVK Chaitanya

package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/bvk/tradegroups/ctxutil"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/visvasity/topic"
)

type Options struct {
	// RetryDelay is the wait time before a failed job is retried.
	RetryDelay time.Duration
}

func (v *Options) setDefaults() {
	if v.RetryDelay == 0 {
		v.RetryDelay = 30 * time.Second
	}
}

func (v *Options) Check() error {
	if v.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}

type Queue struct {
	db kv.Database

	opts Options

	cg ctxutil.CloseGroup

	wg sync.WaitGroup

	events *topic.Topic[*Event]

	mu sync.Mutex

	// handler is non-nil while jobs are being processed.
	handler Handler

	sem chan struct{}

	// knownMap holds ids of all jobs added during the current Process call.
	knownMap map[string]struct{}

	// group holds partition goroutines of the current Process call.
	group *ctxutil.CloseGroup

	// partitionMap holds pending jobs of each queue while processing.
	partitionMap map[string]*partition
}

type partition struct {
	name string

	// jobs is sorted by the scheduled time.
	jobs []*gobs.JobData

	wakeCh chan struct{}

	runningUID string

	cancel context.CancelCauseFunc

	// runningDone is closed after the running job's final state is saved.
	runningDone chan struct{}
}

func (p *partition) wakeup() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func New(db kv.Database, opts *Options) (*Queue, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	q := &Queue{
		db:     db,
		opts:   *opts,
		events: topic.New[*Event](),
	}
	return q, nil
}

// Close stops job processing and waits for the Process call to return.
func (q *Queue) Close() error {
	q.cg.Close()
	q.wg.Wait()
	return nil
}

// Subscribe returns a receiver for the events generated when jobs reach a
// final state.
func (q *Queue) Subscribe() (*topic.Receiver[*Event], error) {
	return topic.Subscribe(q.events, 0, false)
}

func jobKey(uid string) string {
	return path.Join(Keyspace, uid)
}

// Create saves a new job in the database. Job is executed after the input
// delay if the queue is being processed or when processing begins.
func (q *Queue) Create(ctx context.Context, spec *Spec) (string, error) {
	if err := q.cg.Context().Err(); err != nil {
		return "", fmt.Errorf("queue is closed: %w", os.ErrClosed)
	}
	if err := spec.Check(); err != nil {
		return "", err
	}

	uid := spec.UID
	if len(uid) == 0 {
		uid = uuid.NewString()
	}
	if !kvutil.IsGoodKey(jobKey(uid)) {
		return "", fmt.Errorf("job uid %q is not usable as a key: %w", uid, os.ErrInvalid)
	}

	now := time.Now()
	jd := &gobs.JobData{
		UID:         uid,
		Queue:       spec.Queue,
		Seq:         spec.Order,
		Payload:     spec.Payload,
		RunAt:       now.Add(spec.Delay),
		MaxAttempts: spec.MaxAttempts,
		State:       string(PENDING),
		CreateTime:  now,
		UpdateTime:  now,
	}

	create := func(ctx context.Context, rw kv.ReadWriter) error {
		ok, err := kvutil.Exists(ctx, rw, jobKey(uid))
		if err != nil {
			return fmt.Errorf("could not check if job %q exists: %w", uid, err)
		}
		if ok {
			return fmt.Errorf("job with uid %q already exists: %w", uid, os.ErrExist)
		}
		return kvutil.Set(ctx, rw, jobKey(uid), jd)
	}
	if err := kv.WithReadWriter(ctx, q.db, create); err != nil {
		return "", fmt.Errorf("could not create job: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.handler != nil {
		q.addLocked(jd)
	}
	return uid, nil
}

// Get returns the job data saved in the database.
func (q *Queue) Get(ctx context.Context, uid string) (*gobs.JobData, error) {
	jd, err := kvutil.GetDB[gobs.JobData](ctx, q.db, jobKey(uid))
	if err != nil {
		return nil, fmt.Errorf("could not load job %q: %w", uid, err)
	}
	return jd, nil
}

// Scan invokes the callback with all jobs in the database.
func (q *Queue) Scan(ctx context.Context, fn func(context.Context, *gobs.JobData) error) error {
	cb := func(ctx context.Context, _ kv.Reader, _ string, jd *gobs.JobData) error {
		return fn(ctx, jd)
	}
	return kvutil.AscendDir(ctx, q.db, Keyspace, cb)
}

// Cancel marks a job as canceled. Running job is interrupted through it's
// context and Cancel waits for it's handler to return; job is COMPLETED
// instead if the handler succeeds anyway. Returns the final state of the job.
func (q *Queue) Cancel(ctx context.Context, uid string) (State, error) {
	var done chan struct{}
	q.mu.Lock()
	for _, p := range q.partitionMap {
		if p.runningUID == uid {
			p.cancel(errCanceled)
			done = p.runningDone
			break
		}
		if i := slices.IndexFunc(p.jobs, func(jd *gobs.JobData) bool { return jd.UID == uid }); i >= 0 {
			p.jobs = slices.Delete(p.jobs, i, i+1)
			p.wakeup()
			break
		}
	}
	q.mu.Unlock()

	if done != nil {
		select {
		case <-ctx.Done():
			return "", context.Cause(ctx)
		case <-done:
		}
		jd, err := q.Get(ctx, uid)
		if err != nil {
			return "", err
		}
		return State(jd.State), nil
	}

	var state State
	var event *Event
	cancel := func(ctx context.Context, rw kv.ReadWriter) error {
		jd, err := kvutil.Get[gobs.JobData](ctx, rw, jobKey(uid))
		if err != nil {
			return err
		}
		if state = State(jd.State); IsDone(state) {
			return nil
		}
		jd.State, jd.UpdateTime = string(CANCELED), time.Now()
		if err := kvutil.Set(ctx, rw, jobKey(uid), jd); err != nil {
			return err
		}
		state = CANCELED
		event = &Event{UID: uid, Queue: jd.Queue, State: CANCELED, Attempts: jd.Attempts}
		return nil
	}
	if err := kv.WithReadWriter(ctx, q.db, cancel); err != nil {
		return "", fmt.Errorf("could not cancel job %q: %w", uid, err)
	}
	if event != nil {
		q.events.Send(event)
	}
	return state, nil
}

// CancelQueue cancels all unfinished jobs in a queue and returns their ids.
func (q *Queue) CancelQueue(ctx context.Context, queue string) ([]string, error) {
	var uids []string
	collect := func(ctx context.Context, jd *gobs.JobData) error {
		if jd.Queue == queue && !IsDone(State(jd.State)) {
			uids = append(uids, jd.UID)
		}
		return nil
	}
	if err := q.Scan(ctx, collect); err != nil {
		return nil, fmt.Errorf("could not scan jobs in queue %q: %w", queue, err)
	}

	var canceled []string
	for _, uid := range uids {
		state, err := q.Cancel(ctx, uid)
		if err != nil {
			return canceled, err
		}
		if state == CANCELED {
			canceled = append(canceled, uid)
		}
	}
	return canceled, nil
}

// Process executes the pending jobs using the handler till the input context
// is canceled or the queue is closed. Jobs left in RUNNING state by a previous
// instance are executed again. At most concurrency number of jobs are
// executed simultaneously.
func (q *Queue) Process(ctx context.Context, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive: %w", os.ErrInvalid)
	}
	if handler == nil {
		return fmt.Errorf("job handler cannot be nil: %w", os.ErrInvalid)
	}
	if err := q.cg.Context().Err(); err != nil {
		return fmt.Errorf("queue is closed: %w", os.ErrClosed)
	}

	q.wg.Add(1)
	defer q.wg.Done()

	pctx, pcancel := q.cg.WithContext(ctx)
	defer pcancel()

	group := new(ctxutil.CloseGroup)

	q.mu.Lock()
	if q.handler != nil {
		q.mu.Unlock()
		return fmt.Errorf("queue is already being processed: %w", os.ErrExist)
	}
	q.handler = handler
	q.sem = make(chan struct{}, concurrency)
	q.group = group
	q.knownMap = make(map[string]struct{})
	q.partitionMap = make(map[string]*partition)
	q.mu.Unlock()

	defer func() {
		group.Close()

		q.mu.Lock()
		q.handler = nil
		q.sem = nil
		q.group = nil
		q.knownMap = nil
		q.partitionMap = nil
		q.mu.Unlock()
	}()

	// Jobs created after the handler is set are added by the Create method, so
	// scan results may include jobs that are already known.
	var pending []*gobs.JobData
	collect := func(ctx context.Context, jd *gobs.JobData) error {
		if s := State(jd.State); s == PENDING || s == RUNNING {
			pending = append(pending, jd)
		}
		return nil
	}
	if err := q.Scan(ctx, collect); err != nil {
		return fmt.Errorf("could not load pending jobs: %w", err)
	}

	q.mu.Lock()
	for _, jd := range pending {
		if _, ok := q.knownMap[jd.UID]; ok {
			continue
		}
		if State(jd.State) == RUNNING {
			// Interrupted attempt is not counted.
			slog.Warn("job was interrupted by a previous shutdown", "uid", jd.UID, "queue", jd.Queue)
			jd.State = string(PENDING)
			if jd.Attempts > 0 {
				jd.Attempts--
			}
		}
		q.addLocked(jd)
	}
	q.mu.Unlock()

	slog.Info("started processing jobs", "pending", len(pending), "concurrency", concurrency)

	<-pctx.Done()
	slog.Info("stopping job processing", "cause", context.Cause(pctx))
	return nil
}

func (q *Queue) addLocked(jd *gobs.JobData) {
	if _, ok := q.knownMap[jd.UID]; ok {
		return
	}
	q.knownMap[jd.UID] = struct{}{}

	p, ok := q.partitionMap[jd.Queue]
	if !ok {
		p = &partition{
			name:   jd.Queue,
			wakeCh: make(chan struct{}, 1),
		}
		q.partitionMap[jd.Queue] = p
		q.group.Go(func(ctx context.Context) {
			q.goRunPartition(ctx, p)
		})
	}
	i, _ := slices.BinarySearchFunc(p.jobs, jd, compareJobs)
	p.jobs = slices.Insert(p.jobs, i, jd)
	if i == 0 {
		p.wakeup()
	}
}

func (q *Queue) goRunPartition(ctx context.Context, p *partition) {
	for ctx.Err() == nil {
		q.mu.Lock()
		if len(p.jobs) == 0 {
			delete(q.partitionMap, p.name)
			q.mu.Unlock()
			return
		}
		head := p.jobs[0]
		wait := time.Until(head.RunAt)
		q.mu.Unlock()

		if wait > 0 {
			ctxutil.WaitUntil(ctx, head.RunAt, p.wakeCh)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case q.sem <- struct{}{}:
		}
		q.execute(ctx, p, head)
		<-q.sem
	}
}

func (q *Queue) execute(ctx context.Context, p *partition, jd *gobs.JobData) {
	q.mu.Lock()
	if len(p.jobs) == 0 || p.jobs[0] != jd {
		// Job was canceled or a higher priority job has arrived.
		q.mu.Unlock()
		return
	}
	jctx, jcancel := context.WithCancelCause(ctx)
	defer jcancel(nil)

	done := make(chan struct{})
	defer close(done)

	p.runningUID, p.cancel, p.runningDone = jd.UID, jcancel, done
	jd.State, jd.UpdateTime = string(RUNNING), time.Now()
	jd.Attempts++
	running := *jd
	handler := q.handler
	q.mu.Unlock()

	if err := q.save(ctx, &running); err != nil {
		slog.Warn("could not save running state of job (ignored)", "uid", jd.UID, "err", err)
	}

	err := handler(jctx, &running)

	q.mu.Lock()
	p.runningUID, p.cancel, p.runningDone = "", nil, nil

	var event *Event
	switch {
	case err == nil:
		// Handler may succeed even after a cancel request.
		jd.State = string(COMPLETED)
		jd.LastError = ""

	case errors.Is(context.Cause(jctx), errCanceled):
		jd.State = string(CANCELED)
		jd.LastError = err.Error()

	case ctx.Err() != nil:
		// Processing is stopped; job will be resumed by the next Process call.
		jd.State = string(PENDING)
		jd.Attempts--

	case errors.Is(err, ErrFatal) || jd.Attempts >= jd.MaxAttempts:
		jd.State = string(FAILED)
		jd.LastError = err.Error()

	default:
		jd.State = string(PENDING)
		jd.LastError = err.Error()
		jd.RunAt = time.Now().Add(q.opts.RetryDelay)
	}
	jd.UpdateTime = time.Now()

	p.jobs = slices.DeleteFunc(p.jobs, func(v *gobs.JobData) bool { return v == jd })
	if State(jd.State) == PENDING && ctx.Err() == nil {
		i, _ := slices.BinarySearchFunc(p.jobs, jd, compareJobs)
		p.jobs = slices.Insert(p.jobs, i, jd)
	}
	if IsDone(State(jd.State)) {
		event = &Event{
			UID:      jd.UID,
			Queue:    jd.Queue,
			State:    State(jd.State),
			Attempts: jd.Attempts,
			Error:    jd.LastError,
		}
	}
	final := *jd
	q.mu.Unlock()

	switch State(final.State) {
	case CANCELED:
		slog.Info("running job is canceled", "uid", final.UID, "queue", final.Queue)
	case FAILED:
		slog.Error("job has failed", "uid", final.UID, "queue", final.Queue, "attempts", final.Attempts, "err", err)
	case PENDING:
		if err != nil && ctx.Err() == nil {
			slog.Warn("job attempt has failed (will retry)", "uid", final.UID, "queue", final.Queue, "attempts", final.Attempts, "err", err)
		}
	}

	if err := q.save(context.WithoutCancel(ctx), &final); err != nil {
		slog.Error("could not save job state", "uid", final.UID, "state", final.State, "err", err)
	}
	if event != nil {
		q.events.Send(event)
	}
}

// save updates the job data unless it is already in a final state.
func (q *Queue) save(ctx context.Context, jd *gobs.JobData) error {
	update := func(ctx context.Context, rw kv.ReadWriter) error {
		old, err := kvutil.Get[gobs.JobData](ctx, rw, jobKey(jd.UID))
		if err != nil {
			return err
		}
		if IsDone(State(old.State)) {
			return nil
		}
		return kvutil.Set(ctx, rw, jobKey(jd.UID), jd)
	}
	return kv.WithReadWriter(ctx, q.db, update)
}
