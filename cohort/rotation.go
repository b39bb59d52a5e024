// Copyright (c) 2025 BVK Chaitanya

package cohort

import (
	"fmt"
	"os"
	"slices"
)

// Rotation is the ordered list of trading partners for an account. Rank of a
// partner is it's index in the Partners list.
type Rotation struct {
	Account string

	Partners []string
}

// Generate creates a randomized rotation for the focal account from the
// members of it's cohort. Focal account is excluded from the rotation; it is
// not an error if focal account is not a member.
func Generate(focal string, members []string, rng RandomSource) (*Rotation, error) {
	if len(focal) == 0 {
		return nil, fmt.Errorf("focal account id cannot be empty: %w", os.ErrInvalid)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("cohort cannot be empty: %w", os.ErrInvalid)
	}

	seen := make(map[string]struct{}, len(members))
	partners := make([]string, 0, len(members))
	for _, m := range members {
		if len(m) == 0 {
			return nil, fmt.Errorf("cohort member id cannot be empty: %w", os.ErrInvalid)
		}
		if _, ok := seen[m]; ok {
			return nil, fmt.Errorf("cohort member %q is repeated: %w", m, os.ErrInvalid)
		}
		seen[m] = struct{}{}
		if m != focal {
			partners = append(partners, m)
		}
	}

	Shuffle(partners, rng)
	return &Rotation{Account: focal, Partners: partners}, nil
}

// FromRanks rebuilds a rotation from a partner to rank mapping. Ranks must be
// a permutation of 0..len(ranks)-1.
func FromRanks(account string, ranks map[string]int) (*Rotation, error) {
	partners := make([]string, len(ranks))
	for p, rank := range ranks {
		if rank < 0 || rank >= len(ranks) {
			return nil, fmt.Errorf("partner %q has out of range rank %d: %w", p, rank, os.ErrInvalid)
		}
		if len(partners[rank]) != 0 {
			return nil, fmt.Errorf("rank %d is assigned to multiple partners: %w", rank, os.ErrInvalid)
		}
		partners[rank] = p
	}
	r := &Rotation{Account: account, Partners: partners}
	if err := r.Check(); err != nil {
		return nil, err
	}
	return r, nil
}

// Check verifies that rotation doesn't include the account itself and that
// every partner appears exactly once.
func (r *Rotation) Check() error {
	if len(r.Account) == 0 {
		return fmt.Errorf("rotation account cannot be empty: %w", os.ErrInvalid)
	}
	seen := make(map[string]struct{}, len(r.Partners))
	for _, p := range r.Partners {
		if len(p) == 0 {
			return fmt.Errorf("rotation partner cannot be empty: %w", os.ErrInvalid)
		}
		if p == r.Account {
			return fmt.Errorf("account %q cannot be it's own partner: %w", p, os.ErrInvalid)
		}
		if _, ok := seen[p]; ok {
			return fmt.Errorf("partner %q is repeated: %w", p, os.ErrInvalid)
		}
		seen[p] = struct{}{}
	}
	return nil
}

// Rank returns the rank of a partner or -1 if it is not in the rotation.
func (r *Rotation) Rank(partner string) int {
	return slices.Index(r.Partners, partner)
}

// Ranks returns the partner to rank mapping.
func (r *Rotation) Ranks() map[string]int {
	ranks := make(map[string]int, len(r.Partners))
	for i, p := range r.Partners {
		ranks[p] = i
	}
	return ranks
}

func (r *Rotation) Len() int {
	return len(r.Partners)
}
