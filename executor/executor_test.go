// Copyright (c) 2025 BVK Chaitanya

package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/job"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
)

type fakeTrader struct {
	mu sync.Mutex

	requests []*Request

	err error
}

func (f *fakeTrader) Trade(ctx context.Context, req *Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

type failingAccounts struct{}

func (failingAccounts) GetCredentials(ctx context.Context, account string) (*gobs.Credentials, error) {
	return nil, fmt.Errorf("database is unavailable")
}

func (failingAccounts) GetInstruments(ctx context.Context, account string) ([]string, error) {
	return nil, nil
}

func setup(t *testing.T, trader Trader) (kv.Database, *accounts.Store, *Executor) {
	ctx := context.Background()
	db := kvmemdb.New()
	store := accounts.New(db)
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Add(ctx, id, ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SetCredentials(ctx, "a", "key", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetInstruments(ctx, "a", []string{"BTC-USD"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetCredentials(ctx, "c", "key", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetInstruments(ctx, "b", []string{"ETH-USD"}); err != nil {
		t.Fatal(err)
	}

	e, err := New(db, store, trader, nil)
	if err != nil {
		t.Fatal(err)
	}
	return db, store, e
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	trader := new(fakeTrader)
	_, _, e := setup(t, trader)

	tj := &gobs.TradeJob{Account: "a", Partner: "b", Rank: 0}
	result := e.Execute(ctx, "job1", tj)
	if result.Outcome != Succeeded {
		t.Fatalf("want SUCCEEDED, got %s (%s)", result.Outcome, result.Reason)
	}
	if len(trader.requests) != 1 {
		t.Fatalf("want one trade, got %d", len(trader.requests))
	}
	req := trader.requests[0]
	if req.Account != "a" || req.Partner != "b" || req.Credentials.APIKey != "key" || len(req.Instruments) != 1 {
		t.Fatalf("unexpected trade request %#v", req)
	}

	// Executing the same job again must not trade again.
	if result := e.Execute(ctx, "job1", tj); result.Outcome != Succeeded {
		t.Fatalf("want SUCCEEDED, got %s", result.Outcome)
	}
	if len(trader.requests) != 1 {
		t.Fatalf("want one trade, got %d", len(trader.requests))
	}

	records, err := e.Records(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].JobUID != "job1" || records[0].NoOp {
		t.Fatalf("unexpected trade records %#v", records)
	}
}

func TestExecuteNoCredentials(t *testing.T) {
	ctx := context.Background()
	trader := new(fakeTrader)
	_, _, e := setup(t, trader)

	result := e.Execute(ctx, "job1", &gobs.TradeJob{Account: "b", Partner: "a"})
	if result.Outcome != Exhausted {
		t.Fatalf("want EXHAUSTED, got %s", result.Outcome)
	}
	if len(trader.requests) != 0 {
		t.Fatalf("want no trades, got %d", len(trader.requests))
	}
}

func TestExecuteNoInstruments(t *testing.T) {
	ctx := context.Background()
	trader := new(fakeTrader)
	_, _, e := setup(t, trader)

	// Partner c has no instruments even though focal account a has some.
	result := e.Execute(ctx, "job1", &gobs.TradeJob{Account: "a", Partner: "c"})
	if result.Outcome != Succeeded {
		t.Fatalf("want SUCCEEDED, got %s (%s)", result.Outcome, result.Reason)
	}
	if !result.Record.NoOp {
		t.Fatalf("want a no-op trade record")
	}
	if len(trader.requests) != 0 {
		t.Fatalf("want no trades, got %d", len(trader.requests))
	}
}

func TestExecutePartnerInstruments(t *testing.T) {
	ctx := context.Background()
	trader := new(fakeTrader)
	_, _, e := setup(t, trader)

	// Focal account c has no instruments, but it's partner a has.
	result := e.Execute(ctx, "job1", &gobs.TradeJob{Account: "c", Partner: "a"})
	if result.Outcome != Succeeded {
		t.Fatalf("want SUCCEEDED, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Record.NoOp {
		t.Fatalf("want a real trade, got a no-op record")
	}
	if len(trader.requests) != 1 {
		t.Fatalf("want one trade, got %d", len(trader.requests))
	}
	req := trader.requests[0]
	if req.Account != "c" || req.Partner != "a" || !slices.Equal(req.Instruments, []string{"BTC-USD"}) {
		t.Fatalf("unexpected trade request %#v", req)
	}
}

func TestExecuteTransient(t *testing.T) {
	ctx := context.Background()
	e, err := New(kvmemdb.New(), failingAccounts{}, new(fakeTrader), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result := e.Execute(ctx, "job1", &gobs.TradeJob{Account: "a", Partner: "b"}); result.Outcome != Retry {
		t.Fatalf("want RETRY, got %s", result.Outcome)
	}

	trader := &fakeTrader{err: fmt.Errorf("exchange is down")}
	_, _, e = setup(t, trader)
	if result := e.Execute(ctx, "job1", &gobs.TradeJob{Account: "a", Partner: "b"}); result.Outcome != Retry {
		t.Fatalf("want RETRY, got %s", result.Outcome)
	}

	trader.err = fmt.Errorf("insufficient funds: %w", ErrRejected)
	if result := e.Execute(ctx, "job1", &gobs.TradeJob{Account: "a", Partner: "b"}); result.Outcome != Exhausted {
		t.Fatalf("want EXHAUSTED, got %s", result.Outcome)
	}
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	_, _, e := setup(t, new(fakeTrader))

	payload, err := gobs.Encode(&gobs.TradeJob{Account: "b", Partner: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Handle(ctx, &gobs.JobData{UID: "job1", Payload: payload}); !errors.Is(err, job.ErrFatal) {
		t.Fatalf("want job.ErrFatal, got %v", err)
	}

	payload, err = gobs.Encode(&gobs.TradeJob{Account: "a", Partner: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Handle(ctx, &gobs.JobData{UID: "job2", Payload: payload}); err != nil {
		t.Fatal(err)
	}

	if err := e.Handle(ctx, &gobs.JobData{UID: "job3", Payload: []byte("garbage")}); !errors.Is(err, job.ErrFatal) {
		t.Fatalf("want job.ErrFatal, got %v", err)
	}
}

func TestOptions(t *testing.T) {
	if _, err := New(kvmemdb.New(), failingAccounts{}, LogTrader{}, &Options{TradesPerSecond: -1}); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid, got %v", err)
	}
}
