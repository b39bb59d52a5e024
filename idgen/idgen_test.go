// Copyright (c) 2023 BVK Chaitanya

package idgen

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func TestIDGenOffset(t *testing.T) {
	seed := "acct-001/run-1"

	g1 := New(seed, 0)
	offset := rand.Intn(20)
	for i := 0; i < offset; i++ {
		g1.NextID()
	}

	g2 := New(seed, g1.Offset())
	if a, b := g1.NextID(), g2.NextID(); a != b {
		t.Fatalf("want %v, got %v", a, b)
	}
	if a, b := g1.At(3), New(seed, 0).Take(4)[3]; a.String() != b {
		t.Fatalf("want %v, got %v", a, b)
	}
}

func TestIDGenTake(t *testing.T) {
	a := New("account/run", 0).Take(25)
	b := New("account/run", 0).Take(25)
	seen := make(map[string]bool)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("want %v, got %v", a[i], b[i])
		}
		if seen[a[i]] {
			t.Fatalf("id %s is repeated", a[i])
		}
		seen[a[i]] = true

		id, err := uuid.Parse(a[i])
		if err != nil {
			t.Fatal(err)
		}
		if v := id.Version(); v != 3 {
			t.Fatalf("want version 3 uuid, got %d", v)
		}
	}

	if c := New("account/other-run", 0).Take(1); c[0] == a[0] {
		t.Fatalf("different seeds must generate different ids")
	}
}
