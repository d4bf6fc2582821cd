package gemini

import (
	"context"
	"math/rand/v2"
	"time"
)

// Clock abstracts time for the retry loop so tests can run instantly.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff computes exponential retry delays: Base doubles per attempt up to
// Max, then Jitter spreads the result by up to that fraction either way so
// concurrent retries do not synchronize.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base * time.Duration(1<<uint(attempt-1))
	if d <= 0 || d > b.Max {
		d = b.Max
	}
	if b.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*b.Jitter))
	}
	return d
}
