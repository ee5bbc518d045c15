package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a bounded exponential backoff with jitter.
type Policy struct {
	Attempts  int           // total tries, including the first
	BaseDelay time.Duration // delay before the second try
	MaxDelay  time.Duration // cap on any single delay
	Jitter    float64       // 0..1 fraction of the delay added randomly
}

// DefaultPolicy matches the upstream API retry budget used by the
// ingestor and worker.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  6,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  8 * time.Second,
		Jitter:    0.3,
	}
}

// Do runs fn until it succeeds, the error is not retryable, attempts run
// out, or ctx is done. The last error is returned.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - p: backoff policy.
//   - retryable: predicate deciding whether an error is worth another try.
//   - fn: operation to run.
// Returns:
//   - error: nil on success, otherwise the last error seen.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func() error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var err error
	delay := p.BaseDelay
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if attempt > 0 {
			if werr := sleep(ctx, withJitter(delay, p.Jitter)); werr != nil {
				return werr
			}
			delay *= 2
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}

func withJitter(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*jitter*float64(d))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
