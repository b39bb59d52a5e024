// Copyright (c) 2025 BVK Chaitanya

// Package assign persists the partner rotation of each account.
package assign

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bvk/tradegroups/cohort"
	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvkgo/kv"
)

const Keyspace = "/activeTrades/"

// Key returns the database key for an account's rotation.
func Key(account string) string {
	return path.Join(Keyspace, account, "trades")
}

type Store struct {
	db kv.Database
}

func New(db kv.Database) *Store {
	return &Store{db: db}
}

// Persist replaces the rotation record for the account. Old record, if any,
// is overwritten in the same transaction, so readers never observe a mix of
// old and new ranks.
func (s *Store) Persist(ctx context.Context, runID string, r *cohort.Rotation) error {
	if err := r.Check(); err != nil {
		return fmt.Errorf("could not persist invalid rotation: %w", err)
	}
	v := &gobs.TradeRotation{
		Account:    r.Account,
		Ranks:      r.Ranks(),
		RunID:      runID,
		UpdateTime: time.Now(),
	}
	key := Key(r.Account)
	if err := kvutil.SetDB(ctx, s.db, key, v); err != nil {
		return fmt.Errorf("could not save rotation for %q: %w", r.Account, err)
	}
	return nil
}

// Get returns the rotation for the account. Returns an error wrapping
// os.ErrNotExist when no rotation is saved.
func (s *Store) Get(ctx context.Context, account string) (*cohort.Rotation, error) {
	v, err := kvutil.GetDB[gobs.TradeRotation](ctx, s.db, Key(account))
	if err != nil {
		return nil, fmt.Errorf("could not load rotation for %q: %w", account, err)
	}
	r, err := cohort.FromRanks(account, v.Ranks)
	if err != nil {
		return nil, fmt.Errorf("rotation for %q is corrupted: %w", account, err)
	}
	return r, nil
}

// GetData returns the saved record for the account.
func (s *Store) GetData(ctx context.Context, account string) (*gobs.TradeRotation, error) {
	v, err := kvutil.GetDB[gobs.TradeRotation](ctx, s.db, Key(account))
	if err != nil {
		return nil, fmt.Errorf("could not load rotation for %q: %w", account, err)
	}
	return v, nil
}

// GetRun returns the rotation saved for the account by the given run. Returns
// an error wrapping os.ErrNotExist when the account has no rotation or it was
// saved by a different run.
func (s *Store) GetRun(ctx context.Context, runID, account string) (*cohort.Rotation, error) {
	v, err := s.GetData(ctx, account)
	if err != nil {
		return nil, err
	}
	if v.RunID != runID {
		return nil, fmt.Errorf("rotation for %q is from run %q: %w", account, v.RunID, os.ErrNotExist)
	}
	r, err := cohort.FromRanks(account, v.Ranks)
	if err != nil {
		return nil, fmt.Errorf("rotation for %q is corrupted: %w", account, err)
	}
	return r, nil
}

// Clear deletes the rotation for the account. Clearing a missing rotation is
// not an error.
func (s *Store) Clear(ctx context.Context, account string) error {
	if err := kvutil.DeleteDB(ctx, s.db, Key(account)); err != nil {
		return fmt.Errorf("could not clear rotation for %q: %w", account, err)
	}
	return nil
}

// Scan invokes the callback with all saved rotations.
func (s *Store) Scan(ctx context.Context, fn func(context.Context, *gobs.TradeRotation) error) error {
	cb := func(ctx context.Context, _ kv.Reader, key string, v *gobs.TradeRotation) error {
		if !strings.HasSuffix(key, "/trades") {
			return nil
		}
		return fn(ctx, v)
	}
	if err := kvutil.AscendDir(ctx, s.db, Keyspace, cb); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not scan rotations: %w", err)
	}
	return nil
}
