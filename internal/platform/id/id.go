// Package id generates identifiers for server-assigned records.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// encoding is unpadded base32; 16 random bytes encode to 26 characters.
var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a 26-character lowercase base32 encoding of a UUIDv4.
//
// The compact form is URL- and filename-safe while preserving the full
// 128 bits of the underlying UUID.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// NewOrderedID returns a canonical UUIDv7 string.
//
// UUIDv7 embeds a millisecond timestamp in its most significant bits, so
// lexicographic order follows creation order. Event identifiers use this
// form to satisfy the journal's causal-ordering requirement.
func NewOrderedID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid v7: %w", err)
	}
	return value.String(), nil
}

// Validate reports whether value parses as a canonical UUID string.
func Validate(value string) error {
	if _, err := uuid.Parse(value); err != nil {
		return fmt.Errorf("invalid id %q: %w", value, err)
	}
	return nil
}
