// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
)

type SetInstruments struct {
	cmdutil.DBFlags
}

func (c *SetInstruments) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-instruments", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	return "set-instruments", fset, cli.CmdFunc(c.run)
}

func (c *SetInstruments) Purpose() string {
	return "Sets the tradeable instruments of an account"
}

func (c *SetInstruments) run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("this command takes one (account-id) argument followed by instrument ids")
	}
	var ids []string
	for _, v := range args[1:] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); len(id) != 0 {
				ids = append(ids, id)
			}
		}
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	return accounts.New(db).SetInstruments(ctx, args[0], ids)
}
