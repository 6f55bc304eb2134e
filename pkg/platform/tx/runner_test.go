package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "qsync/pkg/domain-errors"
)

func TestLockRunnerSerializes(t *testing.T) {
	r := NewLockRunner()
	counter := 0
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunInTx(context.Background(), func(context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestLockRunnerNestedCallsJoin(t *testing.T) {
	r := NewLockRunner()
	ran := false
	err := r.RunInTx(context.Background(), func(ctx context.Context) error {
		return r.RunInTx(ctx, func(context.Context) error {
			ran = true
			return nil
		})
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestLockRunnerPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	err := NewLockRunner().RunInTx(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLockRunnerRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLockRunner().RunInTx(ctx, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}
