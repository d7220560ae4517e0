package cloud

import (
	"context"
	"time"
)

// Retry repeats a storage call with a wait that doubles after every failure.
type Retry struct {
	t        time.Duration
	attempts int
}

func NewRetry(wait time.Duration, attempts int) Retry {
	return Retry{t: wait, attempts: max(attempts, 1)}
}

// Do calls fn until it succeeds, returns the last error when out of
// attempts or the context error when it's done.
func (r Retry) Do(ctx context.Context, fn func() error) (err error) {
	wait := r.t
	for i := 0; i < r.attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == r.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
