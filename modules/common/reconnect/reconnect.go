package reconnect

import (
	"context"
	"time"
)

// Schedule defines the backoff durations for successive reconnect attempts.
var Schedule = []time.Duration{
	time.Second, time.Second, time.Second,
	5 * time.Second, 5 * time.Second, 5 * time.Second,
	15 * time.Second, 15 * time.Second, 15 * time.Second,
}

// Max is the delay used once Schedule is exhausted.
const Max = 30 * time.Second

// Delay returns the backoff duration for the given attempt.
func Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt < len(Schedule) {
		return Schedule[attempt]
	}
	return Max
}

// Wait sleeps for the delay of attempt or until ctx ends.
func Wait(ctx context.Context, attempt int) error {
	t := time.NewTimer(Delay(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
