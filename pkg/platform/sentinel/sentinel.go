package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors.
//
// These represent factual states about records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: record with the same id already exists
// - ErrStale: write carries an updatedAt earlier than the stored one
// - ErrHasDependents: storage refused a delete because child rows reference the record
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrStale         = errors.New("stale write")
	ErrHasDependents = errors.New("has dependents")
	ErrUnavailable   = errors.New("unavailable")
)
