// Copyright (c) 2023 BVK Chaitanya

package daemonize

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"log/syslog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/tradegroups/ctxutil"
	"golang.org/x/sys/unix"
)

// CheckFunc verifies that the background process is initialized. Parent
// process retries the check till it succeeds or returns a non-nil retry
// flag.
type CheckFunc func(ctx context.Context, child *os.Process) (retry bool, err error)

// Daemonize respawns the current program in the background with the same
// command-line arguments. It uses the environment variable envkey to identify
// if current process is the parent or the child process; envkey must not be
// used by any other program. Daemonize *must* be called during the program
// startup before opening databases, log files, etc.
//
// Standard input and outputs in the background process are replaced with
// /dev/null and standard library log is redirected to the syslog.
//
// When successful, Daemonize returns nil to the background process and exits
// the parent process (i.e., never returns). When unsuccessful, Daemonize
// returns non-nil error to the parent process and exits the background process
// (i.e., never returns).
func Daemonize(ctx context.Context, envkey string, check CheckFunc) error {
	if v := os.Getenv(envkey); len(v) == 0 {
		if err := daemonizeParent(ctx, envkey, check); err != nil {
			return err
		}
		os.Exit(0)
	}
	if err := daemonizeChild(filepath.Base(os.Args[0])); err != nil {
		os.Exit(1)
	}
	return nil
}

func daemonizeParent(ctx context.Context, envkey string, check CheckFunc) error {
	binary, err := exec.LookPath(os.Args[0])
	if err != nil {
		return fmt.Errorf("failed to lookup binary: %w", err)
	}
	binaryPath, err := filepath.Abs(binary)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for binary: %w", err)
	}

	file, err := os.OpenFile("/dev/null", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open /dev/null: %w", err)
	}
	defer file.Close()

	// Receive signal when child-process dies.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGCHLD, os.Interrupt)
	defer stop()

	attr := &os.ProcAttr{
		Dir:   "/",
		Env:   append(os.Environ(), fmt.Sprintf("%s=%d", envkey, os.Getpid())),
		Files: []*os.File{file, file, file},
	}
	child, err := os.StartProcess(binaryPath, os.Args, attr)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	if check != nil {
		ctxutil.Sleep(ctx, time.Second)
		for ctx.Err() == nil {
			retry, err := check(ctx, child)
			if err == nil {
				break
			}
			if !retry {
				return err
			}
			slog.WarnContext(ctx, "daemon process not yet initialized", "err", err)
			ctxutil.Sleep(ctx, time.Second)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("could not initialize the background process: %w", err)
	}
	return nil
}

func daemonizeChild(tag string) error {
	syslogger, err := syslog.New(syslog.LOG_INFO, tag)
	if err != nil {
		return fmt.Errorf("could not create syslog: %w", err)
	}
	log.SetOutput(syslogger)

	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("could not set session id: %w", err)
	}
	return nil
}
