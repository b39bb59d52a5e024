// Copyright (c) 2025 BVK Chaitanya

package account

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bvk/tradegroups/accounts"
	"github.com/bvk/tradegroups/subcmds/cmdutil"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type SetCredentials struct {
	cmdutil.DBFlags

	apiKey string
}

func (c *SetCredentials) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("set-credentials", flag.ContinueOnError)
	c.DBFlags.SetFlags(fset)
	fset.StringVar(&c.apiKey, "api-key", "", "exchange api key for the account")
	return "set-credentials", fset, cli.CmdFunc(c.run)
}

func (c *SetCredentials) Purpose() string {
	return "Saves exchange credentials for a trading account"
}

func (c *SetCredentials) Description() string {
	return `

Command "set-credentials" saves the exchange api key and secret for an account.
Secret is read from the terminal without echo, or from the standard input when
it is not a terminal:

  $ tradegroups account set-credentials -api-key=KEY1234 account-1
  Secret:

Trades for accounts without credentials fail without any retries.

`
}

func (c *SetCredentials) run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("this command takes one (account-id) argument")
	}
	if len(c.apiKey) == 0 {
		return fmt.Errorf("api-key flag is required")
	}

	secret, err := readSecret()
	if err != nil {
		return err
	}
	if len(secret) == 0 {
		return fmt.Errorf("secret cannot be empty")
	}

	db, closer, err := c.DBFlags.GetDatabase(ctx)
	if err != nil {
		return err
	}
	defer closer()

	return accounts.New(db).SetCredentials(ctx, args[0], c.apiKey, secret)
}

func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && len(line) == 0 {
			return "", fmt.Errorf("could not read secret from stdin: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprint(os.Stderr, "Secret: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("could not read secret from terminal: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
