// Copyright (c) 2023 BVK Chaitanya

package db

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/bvk/tradegroups/gobs"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/bvkgo/kv"
	"github.com/visvasity/cli"
)

type Get struct {
	cmdutil.DBFlags

	valueType string
}

func (c *Get) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("get", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.valueType, "value-type", "", "gob type name for the value; raw bytes are printed in hex when empty")
	return "get", fset, cli.CmdFunc(c.run)
}

func (c *Get) Purpose() string {
	return "Prints the value of a key in the database"
}

func (c *Get) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("needs one (key) argument")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	var data []byte
	get := func(ctx context.Context, r kv.Reader) error {
		v, err := r.Get(ctx, args[0])
		if err != nil {
			return err
		}
		data, err = io.ReadAll(v)
		return err
	}
	if err := kv.WithReader(ctx, db, get); err != nil {
		return fmt.Errorf("could not get value at key %q: %w", args[0], err)
	}

	stdout := cli.Stdout(ctx)
	if len(c.valueType) == 0 {
		fmt.Fprintf(stdout, "%x\n", data)
		return nil
	}

	value, err := gobs.NewByTypename(c.valueType)
	if err != nil {
		return err
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(value); err != nil {
		return fmt.Errorf("could not gob-decode value as %s: %w", c.valueType, err)
	}
	js, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", js)
	return nil
}
