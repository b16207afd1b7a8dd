package messages

import (
	"circleup/backend/internal/models"
	"context"
	"errors"
	"time"
)

// retryUnavailable runs fn until it succeeds, fails with something other
// than models.ErrBackendUnavailable, or runs out of attempts. The n-th retry
// waits n*delay.
func retryUnavailable(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}

		err = fn(attempt)
		if err == nil || !errors.Is(err, models.ErrBackendUnavailable) {
			return err
		}
	}
	return err
}
