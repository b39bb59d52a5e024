// Copyright (c) 2025 BVK Chaitanya

package executor

import (
	"context"
	"log/slog"

	"github.com/bvk/tradegroups/gobs"
)

// Request holds the inputs for a trade between two accounts.
type Request struct {
	JobUID string

	Account string
	Partner string
	Rank    int

	// Credentials are of the focal account.
	Credentials *gobs.Credentials

	// Instruments are the partner's tradable instruments.
	Instruments []string
}

// Trader performs the trade between two accounts.
type Trader interface {
	Trade(ctx context.Context, req *Request) error
}

// LogTrader is a Trader that only logs the trade requests.
type LogTrader struct{}

func (LogTrader) Trade(ctx context.Context, req *Request) error {
	slog.InfoContext(ctx, "trade", "uid", req.JobUID, "account", req.Account, "partner", req.Partner, "rank", req.Rank, "instruments", req.Instruments)
	return nil
}
