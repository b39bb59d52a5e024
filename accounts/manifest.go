// Copyright (c) 2025 BVK Chaitanya

package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvkgo/kv"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Manifest describes a set of accounts for bulk import. Secrets are never
// part of the manifest; they are referenced by environment variable names:
//
//	accounts:
//	  - id: acct-001
//	    category: gold
//	    instruments: [BTC-USD, ETH-USD]
//	    apiKey: KEY1234
//	    secretEnv: ACCT_001_SECRET
type Manifest struct {
	Accounts []*ManifestAccount `yaml:"accounts"`
}

type ManifestAccount struct {
	ID       string `yaml:"id"`
	Category string `yaml:"category"`

	// Instruments replace the current instruments when non-nil.
	Instruments []string `yaml:"instruments"`

	APIKey    string `yaml:"apiKey"`
	SecretEnv string `yaml:"secretEnv"`
}

// ParseManifest decodes a YAML manifest. Unknown fields are rejected.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := new(Manifest)
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("could not decode accounts manifest: %w", err)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manifest) Check() (err error) {
	seen := make(map[string]bool)
	for i, a := range m.Accounts {
		if a == nil {
			err = multierr.Append(err, fmt.Errorf("account at index %d is empty: %w", i, os.ErrInvalid))
			continue
		}
		if e := CheckID(a.ID); e != nil {
			err = multierr.Append(err, e)
			continue
		}
		if seen[a.ID] {
			err = multierr.Append(err, fmt.Errorf("account %q is repeated: %w", a.ID, os.ErrInvalid))
		}
		seen[a.ID] = true
		if (len(a.APIKey) == 0) != (len(a.SecretEnv) == 0) {
			err = multierr.Append(err, fmt.Errorf("account %q needs both apiKey and secretEnv: %w", a.ID, os.ErrInvalid))
		}
	}
	return err
}

// LookupFunc returns secret values by name. Variables from the env file take
// precedence over the process environment. Empty file name uses the process
// environment only.
func LookupFunc(envFile string) (func(string) (string, bool), error) {
	vars := make(map[string]string)
	if len(envFile) != 0 {
		v, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("could not read env file %q: %w", envFile, err)
		}
		vars = v
	}
	lookup := func(name string) (string, bool) {
		if v, ok := vars[name]; ok {
			return v, true
		}
		return os.LookupEnv(name)
	}
	return lookup, nil
}

type ImportResult struct {
	Added   []string
	Updated []string
}

// Import creates or updates the accounts in the manifest. Each account is
// updated in a single transaction; failure of one account doesn't stop the
// others and all failures are combined into the returned error.
func (s *Store) Import(ctx context.Context, m *Manifest, lookup func(string) (string, bool)) (*ImportResult, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}

	result := new(ImportResult)
	var errs error
	for _, a := range m.Accounts {
		var secret string
		if len(a.SecretEnv) != 0 {
			v, ok := lookup(a.SecretEnv)
			if !ok || len(v) == 0 {
				errs = multierr.Append(errs, fmt.Errorf("secret variable %q for account %q is not set: %w", a.SecretEnv, a.ID, os.ErrNotExist))
				continue
			}
			secret = v
		}

		added, err := s.upsert(ctx, a, secret)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if added {
			result.Added = append(result.Added, a.ID)
		} else {
			result.Updated = append(result.Updated, a.ID)
		}
	}
	return result, errs
}

func (s *Store) upsert(ctx context.Context, a *ManifestAccount, secret string) (added bool, err error) {
	key := path.Join(Keyspace, a.ID)
	update := func(ctx context.Context, rw kv.ReadWriter) error {
		v, err := kvutil.Get[gobs.AccountData](ctx, rw, key)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			v, added = &gobs.AccountData{ID: a.ID, CreateTime: time.Now().Unix()}, true
		}
		v.Category = a.Category
		if err := kvutil.Set(ctx, rw, key, v); err != nil {
			return err
		}
		if a.Instruments != nil {
			iv := &gobs.Instruments{Account: a.ID, IDs: a.Instruments}
			if err := kvutil.Set(ctx, rw, path.Join(InstrumentsKeyspace, a.ID), iv); err != nil {
				return err
			}
		}
		if len(a.APIKey) != 0 {
			cv := &gobs.Credentials{Account: a.ID, APIKey: a.APIKey, Secret: secret}
			if err := kvutil.Set(ctx, rw, path.Join(CredentialsKeyspace, a.ID), cv); err != nil {
				return err
			}
		}
		return nil
	}
	if err := kv.WithReadWriter(ctx, s.db, update); err != nil {
		return false, fmt.Errorf("could not import account %q: %w", a.ID, err)
	}
	return added, nil
}
