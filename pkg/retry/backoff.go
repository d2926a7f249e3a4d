package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy bounds the retry loop and shapes the delay curve.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	CapDelay  time.Duration
	Factor    float64
	Jitter    bool
}

// Connect is the policy for store and RPC dials at startup.
func Connect() Policy {
	return Policy{
		Attempts:  10,
		BaseDelay: 2 * time.Second,
		CapDelay:  60 * time.Second,
		Factor:    2.0,
		Jitter:    true,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx ends.
// Each failure sleeps an exponentially growing, optionally jittered delay.
func Do(ctx context.Context, p Policy, logger *zap.Logger, op string, fn func() error) error {
	delay := p.BaseDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: retry cancelled: %w", op, err)
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("recovered after retries",
					zap.String("op", op),
					zap.Int("attempts", attempt))
			}
			return nil
		}
		if attempt >= p.Attempts {
			return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempt, err)
		}

		sleep := delay
		if p.Jitter {
			// +/-15% spread so simultaneous dials don't sync up.
			sleep += time.Duration((rand.Float64() - 0.5) * 0.3 * float64(delay))
		}
		logger.Warn("attempt failed, backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("sleep", sleep),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: retry cancelled: %w", op, ctx.Err())
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * p.Factor)
		if delay > p.CapDelay {
			delay = p.CapDelay
		}
	}
}
