package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollReturnsFirstDoneValue(t *testing.T) {
	clock := clockwork.NewRealClock()
	calls := 0

	got, err := Poll(context.Background(), clock, time.Second, time.Millisecond, func(context.Context) (string, bool, error) {
		calls++
		if calls < 3 {
			return "", false, nil
		}
		return "ready", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.Equal(t, 3, calls)
}

func TestPollTimeoutKeepsLastError(t *testing.T) {
	clock := clockwork.NewRealClock()
	probeErr := errors.New("execution context was destroyed")

	_, err := Poll(context.Background(), clock, 20*time.Millisecond, 5*time.Millisecond, func(context.Context) (int, bool, error) {
		return 0, false, probeErr
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Contains(t, err.Error(), "execution context was destroyed")
}

func TestPollProbeErrorDoesNotStopPolling(t *testing.T) {
	clock := clockwork.NewRealClock()
	calls := 0

	got, err := Poll(context.Background(), clock, time.Second, time.Millisecond, func(context.Context) (int, bool, error) {
		calls++
		if calls == 1 {
			return 0, false, errors.New("transient")
		}
		return 42, true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestPollHonoursContext(t *testing.T) {
	clock := clockwork.NewRealClock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Poll(ctx, clock, time.Minute, 10*time.Millisecond, func(context.Context) (int, bool, error) {
		return 0, false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollWithFakeClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	done := make(chan error, 1)
	calls := 0

	go func() {
		_, err := Poll(context.Background(), clock, time.Second, 200*time.Millisecond, func(context.Context) (int, bool, error) {
			calls++
			return 0, false, nil
		})
		done <- err
	}()

	// 1s / 200ms: the initial probe plus five waits
	for i := 0; i < 5; i++ {
		clock.BlockUntil(1)
		clock.Advance(200 * time.Millisecond)
	}

	err := <-done
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 6, calls)
}
