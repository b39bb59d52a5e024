// Copyright (c) 2025 BVK Chaitanya

package gobs

import (
	"bytes"
	"encoding/gob"
)

// Encode returns the gob encoding of a value.
func Encode[T any](v *T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decodes a gob encoded value.
func Decode[T any](data []byte) (*T, error) {
	v := new(T)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return nil, err
	}
	return v, nil
}
