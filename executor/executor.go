// Copyright (c) 2025 BVK Chaitanya

// Package executor runs the trade jobs created by the scheduler.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/bvk/tradegroups/ctxutil"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvk/tradegroups/scheduler"
	"github.com/bvkgo/kv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const Keyspace = "/trades/"

type Outcome string

const (
	Succeeded Outcome = "SUCCEEDED"
	Retry     Outcome = "RETRY"
	Exhausted Outcome = "EXHAUSTED"
)

// ErrRejected when wrapped by a Trader's error means trade will never succeed
// and must not be retried.
var ErrRejected = errors.New("trade is rejected")

// AccountReader is the account data needed to execute a trade.
type AccountReader interface {
	GetCredentials(ctx context.Context, account string) (*gobs.Credentials, error)
	GetInstruments(ctx context.Context, account string) ([]string, error)
}

type Result struct {
	Outcome Outcome
	Reason  string

	Record *gobs.TradeRecord
}

type Options struct {
	// TradesPerSecond limits the rate of calls to the trader. Zero means no
	// limit.
	TradesPerSecond float64

	// LedgerTimeout is the maximum time spent retrying a failed ledger update.
	LedgerTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.LedgerTimeout == 0 {
		v.LedgerTimeout = 10 * time.Second
	}
}

func (v *Options) Check() error {
	if v.TradesPerSecond < 0 {
		return fmt.Errorf("trades per second cannot be negative: %w", os.ErrInvalid)
	}
	if v.LedgerTimeout < 0 {
		return fmt.Errorf("ledger timeout cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}

type Executor struct {
	db kv.Database

	opts Options

	accounts AccountReader

	trader Trader

	limiter *rate.Limiter
}

func New(db kv.Database, accounts AccountReader, trader Trader, opts *Options) (*Executor, error) {
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}
	limit := rate.Inf
	if opts.TradesPerSecond > 0 {
		limit = rate.Limit(opts.TradesPerSecond)
	}
	e := &Executor{
		db:       db,
		opts:     *opts,
		accounts: accounts,
		trader:   trader,
		limiter:  rate.NewLimiter(limit, 1),
	}
	return e, nil
}

func recordKey(account, uid string) string {
	return path.Join(Keyspace, account, uid)
}

// Execute performs the trade for a job using the focal account's credentials
// on the partner's instruments. Trade is performed at most once per job id;
// executing a job again after it succeeded is a no-op.
func (e *Executor) Execute(ctx context.Context, uid string, tj *gobs.TradeJob) *Result {
	if len(tj.Account) == 0 || len(tj.Partner) == 0 {
		return &Result{Outcome: Exhausted, Reason: "trade job has no account or partner"}
	}

	key := recordKey(tj.Account, uid)
	if old, err := kvutil.GetDB[gobs.TradeRecord](ctx, e.db, key); err == nil {
		return &Result{Outcome: Succeeded, Reason: "trade was already executed", Record: old}
	} else if !errors.Is(err, os.ErrNotExist) {
		return &Result{Outcome: Retry, Reason: fmt.Sprintf("could not check trade ledger: %v", err)}
	}

	var creds *gobs.Credentials
	var instruments []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		creds, err = e.accounts.GetCredentials(gctx, tj.Account)
		return err
	})
	g.Go(func() (err error) {
		instruments, err = e.accounts.GetInstruments(gctx, tj.Partner)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Result{Outcome: Exhausted, Reason: fmt.Sprintf("account %q has no credentials: %v", tj.Account, err)}
		}
		return &Result{Outcome: Retry, Reason: fmt.Sprintf("could not load account data: %v", err)}
	}

	record := &gobs.TradeRecord{
		JobUID:      uid,
		Account:     tj.Account,
		Partner:     tj.Partner,
		Rank:        tj.Rank,
		Instruments: instruments,
		NoOp:        len(instruments) == 0,
	}

	if !record.NoOp {
		if err := e.limiter.Wait(ctx); err != nil {
			return &Result{Outcome: Retry, Reason: fmt.Sprintf("could not wait for trade rate limit: %v", err)}
		}
		req := &Request{
			JobUID:      uid,
			Account:     tj.Account,
			Partner:     tj.Partner,
			Rank:        tj.Rank,
			Credentials: creds,
			Instruments: instruments,
		}
		if err := e.trader.Trade(ctx, req); err != nil {
			if errors.Is(err, ErrRejected) {
				return &Result{Outcome: Exhausted, Reason: err.Error()}
			}
			return &Result{Outcome: Retry, Reason: err.Error()}
		}
	}
	record.ExecuteTime = time.Now()

	// Trade is already done, so ledger update is retried for a while instead
	// of failing the job.
	save := func() error {
		return kvutil.SetDB(context.WithoutCancel(ctx), e.db, key, record)
	}
	if err := ctxutil.RetryTimeout(ctx, 100*time.Millisecond, e.opts.LedgerTimeout, save); err != nil {
		slog.Error("could not save trade record (ignored)", "uid", uid, "account", tj.Account, "partner", tj.Partner, "err", err)
	}
	return &Result{Outcome: Succeeded, Record: record}
}

// Handle executes a trade job from the job queue. Returns an error wrapping
// job.ErrFatal when trade must not be retried.
func (e *Executor) Handle(ctx context.Context, jd *gobs.JobData) error {
	tj, err := scheduler.DecodeTradeJob(jd)
	if err != nil {
		return fmt.Errorf("%w: %w", job.ErrFatal, err)
	}

	result := e.Execute(ctx, jd.UID, tj)
	switch result.Outcome {
	case Succeeded:
		slog.Info("trade job is complete", "uid", jd.UID, "account", tj.Account, "partner", tj.Partner, "rank", tj.Rank, "noop", result.Record.NoOp)
		return nil
	case Exhausted:
		return fmt.Errorf("%s: %w", result.Reason, job.ErrFatal)
	default:
		return errors.New(result.Reason)
	}
}

// Records returns the trades executed for an account.
func (e *Executor) Records(ctx context.Context, account string) ([]*gobs.TradeRecord, error) {
	var records []*gobs.TradeRecord
	collect := func(ctx context.Context, _ kv.Reader, _ string, v *gobs.TradeRecord) error {
		records = append(records, v)
		return nil
	}
	if err := kvutil.AscendDir(ctx, e.db, path.Join(Keyspace, account), collect); err != nil {
		return nil, fmt.Errorf("could not scan trade records of %q: %w", account, err)
	}
	return records, nil
}
