package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrPollTimeout is returned by Poll when the deadline passes before the
// probe reports completion.
var ErrPollTimeout = errors.New("poll deadline exceeded")

// Probe inspects the page once. It returns done=true with a value when the
// wait is over. A probe error does not stop polling: pages routinely fail
// lookups while navigating, so the error is kept only as diagnostic detail.
type Probe[T any] func(ctx context.Context) (value T, done bool, err error)

// Poll runs probe immediately and then every interval until it reports done,
// the timeout elapses or ctx is cancelled. The probe always gets one final
// attempt at the deadline so a slow last interval cannot hide a result.
func Poll[T any](ctx context.Context, clock clockwork.Clock, timeout, interval time.Duration, probe Probe[T]) (T, error) {
	var zero T
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	deadline := clock.Now().Add(timeout)
	var lastErr error

	for {
		value, done, err := probe(ctx)
		if done {
			return value, nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			if lastErr != nil {
				return zero, fmt.Errorf("%w after %s: %v", ErrPollTimeout, timeout, lastErr)
			}
			return zero, fmt.Errorf("%w after %s", ErrPollTimeout, timeout)
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-clock.After(wait):
		}
	}
}
