package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qsync/pkg/domain-errors"
)

type testStatus string

const (
	draft    testStatus = "draft"
	pending  testStatus = "pending"
	approved testStatus = "approved"
	rejected testStatus = "rejected"
)

var machine = NewMachine(rejected, map[testStatus][]testStatus{
	draft:    {pending},
	pending:  {approved, rejected},
	rejected: {pending},
})

func TestEvaluateLock(t *testing.T) {
	assert.Equal(t, LockState{}, EvaluateLock(0, false))
	assert.Equal(t, LockState{Locked: true, Reason: ReasonAlreadyVerified}, EvaluateLock(0, true))
	assert.Equal(t, LockState{Locked: true, Reason: ReasonHasAchievements}, EvaluateLock(2, false))

	// dependents win over terminal status
	assert.Equal(t, ReasonHasAchievements, EvaluateLock(1, true).Reason)
}

func TestDeleteGuard(t *testing.T) {
	require.NoError(t, DeleteGuard("profile", Unlocked()))

	depErr := DeleteGuard("profile", EvaluateLock(3, false))
	require.Error(t, depErr)
	assert.True(t, dErrors.HasCode(depErr, dErrors.CodePreconditionFailed))
	assert.Equal(t, "has_achievements", dErrors.ReasonOf(depErr))

	verifiedErr := DeleteGuard("submission", EvaluateLock(0, true))
	assert.Equal(t, "already_verified", dErrors.ReasonOf(verifiedErr))
	assert.NotEqual(t, depErr.Error(), verifiedErr.Error())
}

func TestRequireUnlocked(t *testing.T) {
	require.NoError(t, RequireUnlocked("profile", Unlocked(), "code"))

	err := RequireUnlocked("profile", EvaluateLock(0, true), "standard")
	assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	assert.Contains(t, err.Error(), "standard")
}

func TestMachineApply(t *testing.T) {
	t.Run("forward edge", func(t *testing.T) {
		tr, err := machine.Apply("profile", draft, pending, "", "")
		require.NoError(t, err)
		assert.Equal(t, pending, tr.Status)
		assert.True(t, tr.Changed)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		_, err := machine.Apply("profile", pending, rejected, "", "  ")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		tr, err := machine.Apply("profile", pending, rejected, "", "numerator undefined")
		require.NoError(t, err)
		assert.Equal(t, "numerator undefined", tr.RejectionReason)
	})

	t.Run("leaving rejected clears the reason", func(t *testing.T) {
		tr, err := machine.Apply("profile", rejected, pending, "numerator undefined", "")
		require.NoError(t, err)
		assert.Empty(t, tr.RejectionReason)
	})

	t.Run("staying put keeps the reason", func(t *testing.T) {
		tr, err := machine.Apply("profile", rejected, rejected, "old", "")
		require.NoError(t, err)
		assert.Equal(t, "old", tr.RejectionReason)
		assert.False(t, tr.Changed)

		tr, err = machine.Apply("profile", approved, approved, "", "")
		require.NoError(t, err)
		assert.Equal(t, approved, tr.Status)
	})

	t.Run("unknown edge is a precondition failure", func(t *testing.T) {
		_, err := machine.Apply("profile", draft, approved, "", "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))
		assert.Equal(t, ReasonInvalidTransition, dErrors.ReasonOf(err))

		_, err = machine.Apply("profile", approved, pending, "", "")
		assert.Error(t, err)
	})
}

func TestStatusTable(t *testing.T) {
	table := NewStatusTable(
		StatusEntry[testStatus]{Code: draft, Label: "Draft"},
		StatusEntry[testStatus]{Code: pending, Label: "Pending Approval"},
	)

	assert.Equal(t, "Pending Approval", table.Label(pending))
	assert.Equal(t, "approved", table.Label(approved))

	s, err := table.Parse("pending approval")
	require.NoError(t, err)
	assert.Equal(t, pending, s)

	s, err = table.Parse("DRAFT")
	require.NoError(t, err)
	assert.Equal(t, draft, s)

	_, err = table.Parse("archived")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, []testStatus{draft, pending}, table.Codes())
}

func TestNextUpdatedAt(t *testing.T) {
	prev := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("clock ahead", func(t *testing.T) {
		now := prev.Add(time.Second + 1500*time.Nanosecond)
		got := NextUpdatedAt(now, prev)
		assert.Equal(t, prev.Add(time.Second+time.Microsecond), got)
	})

	t.Run("clock equal bumps by a microsecond", func(t *testing.T) {
		assert.Equal(t, prev.Add(time.Microsecond), NextUpdatedAt(prev, prev))
	})

	t.Run("clock behind bumps past stored", func(t *testing.T) {
		assert.Equal(t, prev.Add(time.Microsecond), NextUpdatedAt(prev.Add(-time.Hour), prev))
	})
}

func TestCheckExpected(t *testing.T) {
	stored := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.NoError(t, CheckExpected("profile", nil, stored))
	same := stored.Add(300 * time.Nanosecond)
	assert.NoError(t, CheckExpected("profile", &same, stored))

	older := stored.Add(-time.Second)
	err := CheckExpected("profile", &older, stored)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}
