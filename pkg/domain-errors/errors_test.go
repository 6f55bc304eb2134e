package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "profile not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("Wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("db down")
		err := Wrap(cause, CodeInternal, "failed to load")
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("reason travels with the error", func(t *testing.T) {
		err := WithReason(CodePreconditionFailed, "has_achievements", "profile has submissions")
		assert.Equal(t, "has_achievements", ReasonOf(err))
		assert.Equal(t, "", ReasonOf(errors.New("plain")))
	})
}
