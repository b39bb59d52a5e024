// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/assign"
	"github.com/bvk/tradegroups/ctxutil"
	"github.com/bvk/tradegroups/daemonize"
	"github.com/bvk/tradegroups/executor"
	"github.com/bvk/tradegroups/job"
	"github.com/bvk/tradegroups/orchestrator"
	"github.com/bvk/tradegroups/scheduler"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/nightlyone/lockfile"
	"github.com/visvasity/cli"
	"github.com/visvasity/sglog"
	"github.com/visvasity/topic"
	"golang.org/x/sync/errgroup"
)

type Run struct {
	cmdutil.ScheduleFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	dataDir string
	logDir  string

	concurrency     int
	retryDelay      time.Duration
	tradesPerSecond float64

	scheduleInterval time.Duration
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ScheduleFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.logDir, "log-dir", "", "path to the log files directory")
	fset.IntVar(&c.concurrency, "concurrency", 8, "max number of trade jobs executed in parallel")
	fset.DurationVar(&c.retryDelay, "retry-delay", 30*time.Second, "wait time before a failed trade is retried")
	fset.Float64Var(&c.tradesPerSecond, "trades-per-second", 0, "max number of trades per second; zero means no limit")
	fset.DurationVar(&c.scheduleInterval, "schedule-interval", 0, "when non-zero, runs a scheduling run periodically")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Purpose() string {
	return "Runs the trade job processor in foreground or background"
}

func (c *Run) Description() string {
	return `

Command "run" starts the trade job processor. Processor scans the database for
pending trade jobs and executes them when they are due. Jobs interrupted by a
previous shutdown are executed again.

When -schedule-interval flag is set, processor also runs a scheduling run
periodically, which assigns new partner rotations to all accounts in the
selected category and schedules their trades. Scheduling runs can also be
performed by the "schedule" command.

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(c.dataDir) == 0 {
		c.dataDir = cmdutil.DefaultDataDir()
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	lockPath := filepath.Join(dataDir, "tradegroups.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}

	// Background process is initialized when it owns the lock file.
	check := func(ctx context.Context, child *os.Process) (bool, error) {
		owner, err := flock.GetOwner()
		if err != nil {
			return true, err
		}
		if owner.Pid != child.Pid {
			return c.restart, fmt.Errorf("is another instance already running? pid mismatch: want %d got %d", child.Pid, owner.Pid)
		}
		return false, nil
	}
	if c.background {
		if err := daemonize.Daemonize(ctx, "TRADEGROUPS_DAEMONIZE", check); err != nil {
			return err
		}
	}

	if len(c.logDir) != 0 {
		backend := sglog.NewBackend(&sglog.Options{LogDirs: []string{c.logDir}})
		defer backend.Close()
		slog.SetDefault(slog.New(backend.Handler()))
	}

	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			slog.Info("waiting for the previous instance to shutdown", "pid", owner.Pid)
			if err := ctxutil.RetryTimeout(ctx, time.Second, c.shutdownTimeout, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	slog.Info("using data directory", "dir", dataDir)

	db, closer, err := cmdutil.OpenBadger(dataDir)
	if err != nil {
		return err
	}
	defer closer()

	queue, err := job.New(db, &job.Options{RetryDelay: c.retryDelay})
	if err != nil {
		return err
	}
	defer queue.Close()

	store := accounts.New(db)
	exec, err := executor.New(db, store, executor.LogTrader{}, &executor.Options{TradesPerSecond: c.tradesPerSecond})
	if err != nil {
		return err
	}
	orch := orchestrator.New(db, assign.New(db), scheduler.New(queue))

	receiver, err := queue.Subscribe()
	if err != nil {
		return fmt.Errorf("could not subscribe to job events: %w", err)
	}
	defer receiver.Close()

	eventsCh, err := topic.ReceiveCh(receiver)
	if err != nil {
		return fmt.Errorf("could not get job events channel: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Process(gctx, c.concurrency, exec.Handle)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case e, ok := <-eventsCh:
				if !ok {
					return nil
				}
				slog.Info("job is finished", "uid", e.UID, "account", e.Queue, "state", e.State, "attempts", e.Attempts)
			}
		}
	})
	if c.scheduleInterval > 0 {
		g.Go(func() error {
			for gctx.Err() == nil {
				report, err := orch.RunAll(gctx, store, c.ScheduleFlags.Options())
				if err != nil {
					slog.Error("scheduling run has failed", "err", err)
				} else if failed := report.Failed(); len(failed) > 0 {
					slog.Warn("scheduling run has failures", "run", report.RunID, "failed", len(failed), "err", report.Err())
				}
				ctxutil.Sleep(gctx, c.scheduleInterval)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}
