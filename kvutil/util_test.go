// Copyright (c) 2025 BVK Chaitanya

package kvutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
)

func TestAscendDir(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	for _, id := range []string{"b", "a", "c"} {
		if err := SetDB(ctx, db, "/accounts/"+id, &gobs.AccountData{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := SetDB(ctx, db, "/accountsx", &gobs.AccountData{ID: "x"}); err != nil {
		t.Fatal(err)
	}

	var ids []string
	collect := func(ctx context.Context, _ kv.Reader, key string, v *gobs.AccountData) error {
		ids = append(ids, v.ID)
		return nil
	}
	if err := AscendDir(ctx, db, "/accounts", collect); err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Fatalf("want [a b c], got %v", ids)
	}
}

func TestDeleteDB(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	key := "/accounts/a"
	if err := SetDB(ctx, db, key, &gobs.AccountData{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := DeleteDB(ctx, db, key); err != nil {
		t.Fatal(err)
	}
	if _, err := GetDB[gobs.AccountData](ctx, db, key); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want os.ErrNotExist, got %v", err)
	}
	if err := DeleteDB(ctx, db, key); err != nil {
		t.Fatalf("deleting a missing key must succeed: %v", err)
	}
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	if err := SetDB(ctx, db, "/accounts/a", &gobs.AccountData{ID: "a", Category: "x"}); err != nil {
		t.Fatal(err)
	}

	file := filepath.Join(t.TempDir(), "backup.gob")
	if err := BackupDB(ctx, db, file); err != nil {
		t.Fatal(err)
	}

	restored := kvmemdb.New()
	if err := RestoreDB(ctx, restored, file); err != nil {
		t.Fatal(err)
	}
	v, err := GetDB[gobs.AccountData](ctx, restored, "/accounts/a")
	if err != nil {
		t.Fatal(err)
	}
	if v.ID != "a" || v.Category != "x" {
		t.Fatalf("want restored account, got %#v", v)
	}
}

func TestIsGoodKey(t *testing.T) {
	if !IsGoodKey("/jobs/x") {
		t.Fatalf("want good key")
	}
	for _, k := range []string{"jobs/x", "/jobs/", "/jobs//x", "/jobs/../x"} {
		if IsGoodKey(k) {
			t.Fatalf("key %q must be rejected", k)
		}
	}
}
