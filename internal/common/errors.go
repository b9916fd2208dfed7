// Package common defines shared sentinel errors used across the storage
// layers of nostrchat. Callers should use errors.Is to match these values.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// ErrorRejected marks an event that failed validation and was not
	// stored (missing fields, bad signature).
	ErrorRejected = errors.New("event rejected")

	// ErrorIntegrity marks a broken referential invariant, e.g. a tag row
	// that would reference a missing event. Fatal to the operation.
	ErrorIntegrity = errors.New("integrity violation")

	// ErrorConflictExhausted is returned when a write kept losing the
	// per-row race after the bounded retry budget.
	ErrorConflictExhausted = errors.New("write conflict: retries exhausted")

	// ErrorClosed is returned by services that no longer accept writes.
	ErrorClosed = errors.New("store is closed")
)
