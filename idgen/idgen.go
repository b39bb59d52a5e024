// Copyright (c) 2023 BVK Chaitanya

// Package idgen generates deterministic uuid sequences from a seed string, so
// that retrying an operation reuses the same ids.
package idgen

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Generator creates a sequence of name based (version 3) uuids in the
// namespace derived from a seed string.
type Generator struct {
	space uuid.UUID

	next uint64
}

func New(seed string, offset uint64) *Generator {
	return &Generator{
		space: uuid.NewMD5(uuid.NameSpaceOID, []byte(seed)),
		next:  offset,
	}
}

func (v *Generator) Offset() uint64 {
	return v.next
}

// At returns the i-th id of the sequence without changing the offset.
func (v *Generator) At(i uint64) uuid.UUID {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], i)
	return uuid.NewMD5(v.space, buf[:])
}

func (v *Generator) NextID() uuid.UUID {
	id := v.At(v.next)
	v.next++
	return id
}

// Take returns the next n ids as strings.
func (v *Generator) Take(n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, v.NextID().String())
	}
	return ids
}
