// Copyright (c) 2025 BVK Chaitanya

package gobs

import "time"

type JobData struct {
	UID string

	// Queue is the partition key. Jobs in a queue are executed one at a time.
	Queue string

	// Seq orders jobs with the same RunAt time in a queue.
	Seq int64

	Payload []byte

	RunAt time.Time

	MaxAttempts int
	Attempts    int

	State     string
	LastError string

	CreateTime time.Time
	UpdateTime time.Time
}
