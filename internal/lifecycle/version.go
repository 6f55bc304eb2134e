package lifecycle

import (
	"time"

	dErrors "qsync/pkg/domain-errors"
)

// Precision is the resolution updatedAt is stored at. Postgres timestamptz
// keeps microseconds, so everything is truncated to match.
const Precision = time.Microsecond

// NextUpdatedAt returns the updatedAt for a write happening at now on a record
// last written at prev. The result is always strictly after prev.
func NextUpdatedAt(now, prev time.Time) time.Time {
	now = now.UTC().Truncate(Precision)
	if !now.After(prev) {
		return prev.Add(Precision)
	}
	return now
}

// CheckExpected enforces an optional optimistic version check.
func CheckExpected(kind string, expected *time.Time, stored time.Time) error {
	if expected == nil {
		return nil
	}
	if !expected.UTC().Truncate(Precision).Equal(stored) {
		return dErrors.New(dErrors.CodeConflict, kind+" was modified since expectedUpdatedAt")
	}
	return nil
}
