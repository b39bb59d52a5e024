// Copyright (c) 2023 BVK Chaitanya

package main

import (
	"context"
	"log"
	"os"

	"github.com/bvk/tradegroups/subcmds"
	"github.com/bvk/tradegroups/subcmds/account"
	"github.com/bvk/tradegroups/subcmds/db"
	"github.com/bvk/tradegroups/subcmds/job"
	"github.com/bvk/tradegroups/subcmds/rotation"
	"github.com/bvk/tradegroups/subcmds/runs"
	"github.com/visvasity/cli"
)

func main() {
	dbCmds := []cli.Command{
		new(db.Get),
		new(db.Delete),
		new(db.List),
		new(db.Backup),
		new(db.Restore),
	}

	accountCmds := []cli.Command{
		new(account.Add),
		new(account.Import),
		new(account.List),
		new(account.Remove),
		new(account.SetCredentials),
		new(account.SetInstruments),
		new(account.Trades),
	}

	rotationCmds := []cli.Command{
		new(rotation.Get),
		new(rotation.List),
		new(rotation.Clear),
	}

	jobCmds := []cli.Command{
		new(job.List),
		new(job.Get),
		new(job.Cancel),
		new(job.CancelAccount),
	}

	runsCmds := []cli.Command{
		new(runs.List),
		new(runs.Get),
	}

	cmds := []cli.Command{
		new(subcmds.Run),
		new(subcmds.Schedule),
		new(subcmds.Status),
		new(subcmds.IDGen),
		cli.NewGroup("account", "Manage trading accounts", accountCmds...),
		cli.NewGroup("rotation", "View/clear partner rotations", rotationCmds...),
		cli.NewGroup("job", "Control trade jobs", jobCmds...),
		cli.NewGroup("runs", "View scheduling run reports", runsCmds...),
		cli.NewGroup("db", "View/update database directly", dbCmds...),
	}
	if err := cli.Run(context.Background(), cmds, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
