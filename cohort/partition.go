// Copyright (c) 2025 BVK Chaitanya

// Package cohort splits accounts into fixed size groups and builds randomized
// trading rotations within each group.
package cohort

import (
	"fmt"
	"os"
)

// DefaultSize is the number of accounts in a cohort.
const DefaultSize = 25

// RandomSource is the randomness needed for shuffling. *math/rand.Rand
// satisfies this interface.
type RandomSource interface {
	// Intn returns a uniformly distributed integer in [0, n).
	Intn(n int) int
}

// Partition splits the input into consecutive groups of the given size. Last
// group may be smaller. Input slice is not modified and returned groups do
// not share memory with it.
func Partition[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cohort size must be positive: %w", os.ErrInvalid)
	}
	var groups [][]T
	for begin := 0; begin < len(items); begin += size {
		end := min(begin+size, len(items))
		group := make([]T, end-begin)
		copy(group, items[begin:end])
		groups = append(groups, group)
	}
	return groups, nil
}

// Shuffle randomly permutes the items in place using the Fisher-Yates
// algorithm.
func Shuffle[T any](items []T, rng RandomSource) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
