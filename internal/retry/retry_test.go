package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return nil
	}, WithBaseDelay(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	}, WithBaseDelay(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoReturnsLastErrorAfterAllAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func() error {
		attempts++
		return errors.New("still down")
	}, WithMaxAttempts(3), WithBaseDelay(time.Millisecond))
	require.Error(t, err)
	assert.Equal(t, "still down", err.Error())
	assert.Equal(t, 3, attempts)
}

func TestDoBacksOffExponentially(t *testing.T) {
	base := 20 * time.Millisecond
	start := time.Now()
	_ = Do(context.Background(), func() error {
		return errors.New("down")
	}, WithMaxAttempts(3), WithBaseDelay(base))
	elapsed := time.Since(start)

	// Two sleeps: base and 2*base. No sleep after the final attempt.
	assert.GreaterOrEqual(t, elapsed, 3*base)
	assert.Less(t, elapsed, 10*base)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	start := time.Now()
	err := Do(context.Background(), func() error {
		attempts++
		return Permanent(errors.New("missing media"))
	}, WithMaxAttempts(3), WithBaseDelay(time.Second))

	require.Error(t, err)
	assert.Equal(t, "missing media", err.Error())
	assert.Equal(t, 1, attempts)
	// The delay window is skipped entirely.
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	var perm *PermanentError
	assert.False(t, errors.As(err, &perm), "permanent wrapper is unwrapped before returning")
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, func() error {
		attempts++
		return errors.New("down")
	}, WithBaseDelay(time.Millisecond))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
