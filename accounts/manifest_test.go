// Copyright (c) 2025 BVK Chaitanya

package accounts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bvkgo/kv/kvmemdb"
)

const testManifest = `
accounts:
  - id: acct-1
    category: gold
    instruments: [BTC-USD, ETH-USD]
    apiKey: KEY1
    secretEnv: ACCT_1_SECRET
  - id: acct-2
    category: silver
  - id: acct-3
    apiKey: KEY3
    secretEnv: ACCT_3_SECRET
`

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := New(kvmemdb.New())

	if err := store.Add(ctx, "acct-2", "bronze"); err != nil {
		t.Fatal(err)
	}

	m, err := ParseManifest(strings.NewReader(testManifest))
	if err != nil {
		t.Fatal(err)
	}

	envFile := filepath.Join(t.TempDir(), "secrets.env")
	if err := os.WriteFile(envFile, []byte("ACCT_1_SECRET=s3cret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	lookup, err := LookupFunc(envFile)
	if err != nil {
		t.Fatal(err)
	}

	result, err := store.Import(ctx, m, lookup)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want os.ErrNotExist for the missing acct-3 secret, got %v", err)
	}
	if !slices.Equal(result.Added, []string{"acct-1"}) || !slices.Equal(result.Updated, []string{"acct-2"}) {
		t.Fatalf("want acct-1 added and acct-2 updated, got %+v", result)
	}

	if _, err := store.Get(ctx, "acct-3"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want acct-3 not imported, got %v", err)
	}
	a2, err := store.Get(ctx, "acct-2")
	if err != nil {
		t.Fatal(err)
	}
	if a2.Category != "silver" {
		t.Fatalf("want silver, got %q", a2.Category)
	}

	creds, err := store.GetCredentials(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if creds.APIKey != "KEY1" || creds.Secret != "s3cret" {
		t.Fatalf("want imported credentials, got %+v", creds)
	}
	ids, err := store.GetInstruments(ctx, "acct-1")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []string{"BTC-USD", "ETH-USD"}) {
		t.Fatalf("want imported instruments, got %v", ids)
	}
}

func TestParseManifestErrors(t *testing.T) {
	if _, err := ParseManifest(strings.NewReader("accounts:\n  - id: a\n    unknown: 1\n")); err == nil {
		t.Fatalf("want error for unknown field")
	}
	if _, err := ParseManifest(strings.NewReader("accounts:\n  - id: a\n  - id: a\n")); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid for repeated id, got %v", err)
	}
	if _, err := ParseManifest(strings.NewReader("accounts:\n  - id: a/b\n")); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid for bad id, got %v", err)
	}
	if _, err := ParseManifest(strings.NewReader("accounts:\n  - id: a\n    apiKey: K\n")); !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("want os.ErrInvalid for api key without secret, got %v", err)
	}
	if m, err := ParseManifest(strings.NewReader("")); err != nil || len(m.Accounts) != 0 {
		t.Fatalf("want empty manifest, got %v (%v)", m, err)
	}
}
