package workflow

import "time"

// backoffDelay computes the retry delay after a given number of completed
// attempts: base * 2^attempts, capped at max.
func backoffDelay(base, max time.Duration, attempts int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 30 {
		attempts = 30
	}
	delay := base << uint(attempts)
	if delay <= 0 || (max > 0 && delay > max) {
		return max
	}
	return delay
}
