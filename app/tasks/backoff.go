package tasks

import (
	"math/rand"
	"time"
)

// NextRetryDelay computes the crawl retry delay after the given number of
// consecutive failures: the base interval doubled per additional failure,
// capped at max. The progression is non-decreasing so a struggling feed
// only ever backs off further until it succeeds.
func NextRetryDelay(base, max time.Duration, failures int) time.Duration {
	if base <= 0 || max <= 0 {
		return 0
	}
	if failures < 1 {
		failures = 1
	}

	delay := base
	for i := 1; i < failures; i++ {
		if delay >= max/2 {
			return max
		}
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}

// WithJitter spreads a delay by up to +25% so many shows failing at once
// do not all come due again in the same scheduler tick.
func WithJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d/4)+1))
}
