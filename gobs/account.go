// Copyright (c) 2025 BVK Chaitanya

package gobs

type AccountData struct {
	ID string

	// Category selects the accounts that participate in a scheduling run.
	Category string

	CreateTime int64
}

type Credentials struct {
	Account string

	APIKey string
	Secret string
}

type Instruments struct {
	Account string

	IDs []string
}
