// Package id generates identifiers for flows, accounts and entries.
package id

import (
	"github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string, so identifiers sort by creation time.
func New() string {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v.String()
}

// Valid reports whether s is a well-formed UUID.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
