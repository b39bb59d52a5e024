// Copyright (c) 2023 BVK Chaitanya

package cmdutil

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bvk/tradegroups/kvutil"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
)

// DefaultDataDir returns the data directory used when -data-dir flag is
// empty.
func DefaultDataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".tradegroups")
}

// OpenBadger opens the on-disk database in a directory.
func OpenBadger(dir string) (kv.Database, func(), error) {
	bopts := badger.DefaultOptions(dir)
	bdb, err := badger.Open(bopts)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open the database: %w", err)
	}
	db := kvbadger.New(bdb, kvutil.IsGoodKey)
	return db, func() { bdb.Close() }, nil
}

type DBFlags struct {
	dataDir string

	fromBackup string

	backupBefore string
	backupAfter  string
}

func (f *DBFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&f.dataDir, "data-dir", "", "Path to the database directory")
	fset.StringVar(&f.fromBackup, "from-backup", "", "Path to a database backup file")
	fset.StringVar(&f.backupBefore, "backup-before", "", "Path to a file to receive db backup before cmd is run")
	fset.StringVar(&f.backupAfter, "backup-after", "", "Path to a file to receive db backup after cmd is run")
}

// DataDir returns the absolute path to the data directory.
func (f *DBFlags) DataDir() (string, error) {
	dir := f.dataDir
	if len(dir) == 0 {
		dir = DefaultDataDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("could not determine data-dir %q absolute path: %w", dir, err)
	}
	return abs, nil
}

func (f *DBFlags) dbCloser(db kv.Database, closer func()) func() {
	return func() {
		if len(f.backupAfter) != 0 {
			if err := kvutil.BackupDB(context.Background(), db, f.backupAfter); err != nil {
				slog.Warn("could not take db backup after it is used (ignored)", "err", err)
			}
		}
		if closer != nil {
			closer()
		}
	}
}

// GetDatabase opens the database selected by the flags. An in-memory database
// is used when -from-backup flag is set, so changes are not saved.
func (f *DBFlags) GetDatabase(ctx context.Context) (db kv.Database, closer func(), status error) {
	defer func() {
		if status == nil && len(f.backupBefore) != 0 {
			if err := kvutil.BackupDB(ctx, db, f.backupBefore); err != nil {
				closer()
				db, closer, status = nil, nil, fmt.Errorf("could not take a db backup before it is used: %w", err)
			}
		}
	}()

	if len(f.fromBackup) != 0 {
		db := kvmemdb.New()
		if err := kvutil.RestoreDB(ctx, db, f.fromBackup); err != nil {
			return nil, nil, fmt.Errorf("could not restore in-memory db from backup: %w", err)
		}
		return db, f.dbCloser(db, nil), nil
	}

	dataDir, err := f.DataDir()
	if err != nil {
		return nil, nil, err
	}
	db, bcloser, err := OpenBadger(dataDir)
	if err != nil {
		return nil, nil, err
	}
	return db, f.dbCloser(db, bcloser), nil
}
