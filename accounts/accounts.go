// Copyright (c) 2025 BVK Chaitanya

// Package accounts manages trading accounts, their exchange credentials and
// tradeable instruments in the database.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvkgo/kv"
)

const (
	Keyspace            = "/accounts/"
	CredentialsKeyspace = "/credentials/"
	InstrumentsKeyspace = "/instruments/"
)

type Store struct {
	db kv.Database
}

func New(db kv.Database) *Store {
	return &Store{db: db}
}

// CheckID returns an error if the account id cannot be used as a key
// component.
func CheckID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("account id cannot be empty: %w", os.ErrInvalid)
	}
	if strings.ContainsAny(id, "/") || id == "." || id == ".." {
		return fmt.Errorf("account id %q has invalid characters: %w", id, os.ErrInvalid)
	}
	return nil
}

// Add creates a new account. Returns os.ErrExist if account already exists.
func (s *Store) Add(ctx context.Context, id, category string) error {
	if err := CheckID(id); err != nil {
		return err
	}
	key := path.Join(Keyspace, id)
	add := func(ctx context.Context, rw kv.ReadWriter) error {
		ok, err := kvutil.Exists(ctx, rw, key)
		if err != nil {
			return fmt.Errorf("could not check for account %q: %w", id, err)
		}
		if ok {
			return fmt.Errorf("account %q already exists: %w", id, os.ErrExist)
		}
		v := &gobs.AccountData{
			ID:         id,
			Category:   category,
			CreateTime: time.Now().Unix(),
		}
		return kvutil.Set(ctx, rw, key, v)
	}
	if err := kv.WithReadWriter(ctx, s.db, add); err != nil {
		return fmt.Errorf("could not add account %q: %w", id, err)
	}
	return nil
}

// Remove deletes an account with it's credentials and instruments.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := CheckID(id); err != nil {
		return err
	}
	remove := func(ctx context.Context, rw kv.ReadWriter) error {
		for _, dir := range []string{Keyspace, CredentialsKeyspace, InstrumentsKeyspace} {
			key := path.Join(dir, id)
			if err := rw.Delete(ctx, key); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("could not delete key %q: %w", key, err)
			}
		}
		return nil
	}
	if err := kv.WithReadWriter(ctx, s.db, remove); err != nil {
		return fmt.Errorf("could not remove account %q: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*gobs.AccountData, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	v, err := kvutil.GetDB[gobs.AccountData](ctx, s.db, path.Join(Keyspace, id))
	if err != nil {
		return nil, fmt.Errorf("could not load account %q: %w", id, err)
	}
	return v, nil
}

// List returns all accounts in the given category. Empty category selects
// all accounts.
func (s *Store) List(ctx context.Context, category string) ([]*gobs.AccountData, error) {
	var accounts []*gobs.AccountData
	collect := func(ctx context.Context, _ kv.Reader, key string, v *gobs.AccountData) error {
		if len(category) == 0 || v.Category == category {
			accounts = append(accounts, v)
		}
		return nil
	}
	if err := kvutil.AscendDir(ctx, s.db, Keyspace, collect); err != nil {
		return nil, fmt.Errorf("could not list accounts: %w", err)
	}
	return accounts, nil
}

func (s *Store) SetCredentials(ctx context.Context, id, apiKey, secret string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	v := &gobs.Credentials{
		Account: id,
		APIKey:  apiKey,
		Secret:  secret,
	}
	if err := kvutil.SetDB(ctx, s.db, path.Join(CredentialsKeyspace, id), v); err != nil {
		return fmt.Errorf("could not save credentials for %q: %w", id, err)
	}
	return nil
}

// GetCredentials returns the credentials for an account. Returns an error
// wrapping os.ErrNotExist if account has no credentials.
func (s *Store) GetCredentials(ctx context.Context, id string) (*gobs.Credentials, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	v, err := kvutil.GetDB[gobs.Credentials](ctx, s.db, path.Join(CredentialsKeyspace, id))
	if err != nil {
		return nil, fmt.Errorf("could not load credentials for %q: %w", id, err)
	}
	return v, nil
}

func (s *Store) SetInstruments(ctx context.Context, id string, instruments []string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	v := &gobs.Instruments{
		Account: id,
		IDs:     instruments,
	}
	if err := kvutil.SetDB(ctx, s.db, path.Join(InstrumentsKeyspace, id), v); err != nil {
		return fmt.Errorf("could not save instruments for %q: %w", id, err)
	}
	return nil
}

// GetInstruments returns the instruments of an account. Missing instruments
// record is same as an empty set.
func (s *Store) GetInstruments(ctx context.Context, id string) ([]string, error) {
	if err := CheckID(id); err != nil {
		return nil, err
	}
	v, err := kvutil.GetDB[gobs.Instruments](ctx, s.db, path.Join(InstrumentsKeyspace, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not load instruments for %q: %w", id, err)
	}
	return v.IDs, nil
}
