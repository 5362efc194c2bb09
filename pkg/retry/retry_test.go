package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFlaky  = errors.New("flaky")
	errBroken = errors.New("broken")
)

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	}, append(fast(), WithMaxAttempts(5))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsEarly(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"classifier rejects", errBroken, errBroken},
		{"permanent", Permanent(errFlaky), errFlaky},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), func(context.Context) error {
				calls++
				return tt.err
			}, append(fast(), WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }))...)

			assert.Equal(t, tt.want, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	}, append(fast(), WithMaxAttempts(3), WithOnRetry(func(a int, _ error, _ time.Duration) {
		retried = append(retried, a)
	}))...)

	assert.Equal(t, errFlaky, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	}, fast()...)

	assert.ErrorIs(t, err, errFlaky)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestTxRetrier_AppliesOverrides(t *testing.T) {
	calls := 0
	r := TxRetrier(WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }), WithInitialDelay(time.Millisecond))
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))
	assert.Equal(t, 100*time.Millisecond, r.backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.backoff(2))
	assert.Equal(t, 300*time.Millisecond, r.backoff(5))
	assert.Equal(t, 300*time.Millisecond, r.backoff(70), "overflow is capped")
}
