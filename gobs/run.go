// Copyright (c) 2025 BVK Chaitanya

package gobs

import "time"

type AccountOutcome struct {
	Account string
	Status  string
	Error   string

	JobIDs []string
}

type RunData struct {
	RunID string

	StartTime  time.Time
	FinishTime time.Time

	NumAccounts int
	NumCohorts  int

	Outcomes []*AccountOutcome
}
