// Copyright (c) 2025 BVK Chaitanya

package gobs

import "time"

// TradeRotation is the persisted partner rotation for an account. Partners are
// mapped to their ranks.
type TradeRotation struct {
	Account string

	Ranks map[string]int

	RunID string

	UpdateTime time.Time
}

// TradeJob is the payload of a delayed trade job.
type TradeJob struct {
	RunID string

	Account string
	Partner string

	Rank   int
	Offset time.Duration

	MaxAttempts int
}

// TradeRecord is saved after a trade job is executed.
type TradeRecord struct {
	JobUID string

	Account string
	Partner string
	Rank    int

	Instruments []string

	// NoOp is true when partner had no instruments to trade.
	NoOp bool

	ExecuteTime time.Time
}
