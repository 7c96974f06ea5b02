package services

import (
	"context"
	"math/rand"
	"time"

	"huntparty/logger"
	"huntparty/store"
)

const (
	defaultAttempts  = 3
	retryBaseBackoff = 20 * time.Millisecond
)

// retry runs fn until it succeeds, fails with a non-conflict error, or the
// attempts are spent. Waits grow linearly with up to 100% jitter.
func retry(ctx context.Context, op string, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !store.IsConflict(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Debug("%s: conflict on attempt %d/%d, retrying", op, attempt, attempts)
		base := retryBaseBackoff * time.Duration(attempt)
		wait := base + time.Duration(rand.Int63n(int64(base)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return &ConflictError{Op: op, Attempts: attempts, Err: err}
}
