// Package lifecycle holds the rules that decide whether a synchronized record
// may be deleted, edited or moved to another status. Nothing here does I/O:
// callers load the record and its dependent count inside a store transaction
// and ask the guard before committing.
package lifecycle

import (
	"fmt"

	dErrors "qsync/pkg/domain-errors"
)

// LockReason says why a record is locked.
type LockReason string

const (
	ReasonNone            LockReason = ""
	ReasonHasAchievements LockReason = "has_achievements"
	ReasonAlreadyVerified LockReason = "already_verified"
)

// ReasonInvalidTransition marks a status change that is not an edge of the machine.
const ReasonInvalidTransition = "invalid_transition"

// LockState is derived, never stored.
type LockState struct {
	Locked bool
	Reason LockReason
}

// EvaluateLock locks a record when downstream records reference it or when it
// reached its terminal status. Dependents take precedence over status.
func EvaluateLock(dependents int, terminal bool) LockState {
	switch {
	case dependents > 0:
		return LockState{Locked: true, Reason: ReasonHasAchievements}
	case terminal:
		return LockState{Locked: true, Reason: ReasonAlreadyVerified}
	default:
		return LockState{}
	}
}

// Unlocked is the state of records that never lock.
func Unlocked() LockState {
	return LockState{}
}

// DeleteGuard rejects deletion of a locked record of the given kind.
func DeleteGuard(kind string, lock LockState) error {
	if !lock.Locked {
		return nil
	}
	switch lock.Reason {
	case ReasonHasAchievements:
		return dErrors.WithReason(dErrors.CodePreconditionFailed, string(lock.Reason),
			fmt.Sprintf("%s cannot be deleted because dependent records reference it", kind))
	case ReasonAlreadyVerified:
		return dErrors.WithReason(dErrors.CodePreconditionFailed, string(lock.Reason),
			fmt.Sprintf("%s cannot be deleted after approval", kind))
	default:
		return dErrors.WithReason(dErrors.CodePreconditionFailed, string(lock.Reason),
			fmt.Sprintf("%s is locked", kind))
	}
}

// RequireUnlocked rejects a change to a structural field of a locked record.
// Callers only invoke it when the value actually changes.
func RequireUnlocked(kind string, lock LockState, field string) error {
	if !lock.Locked {
		return nil
	}
	return dErrors.WithReason(dErrors.CodePreconditionFailed, string(lock.Reason),
		fmt.Sprintf("%s field %q cannot change while the record is locked", kind, field))
}
