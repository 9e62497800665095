package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/ligun0805/pirate-runner/internal/logger"
)

// Policy bounds the retries of one logical request. Total attempts are
// MaxRetries+1, spaced by a fixed Delay.
type Policy struct {
	MaxRetries uint
	Delay      time.Duration
}

// Do runs fn until it succeeds, fails with a non-transient error, or the
// policy is exhausted. It returns the last value, the number of attempts made
// and the last error unmodified.
func Do[T any](ctx context.Context, p Policy, lggr *zap.SugaredLogger, fn func(attempt uint) (T, error)) (T, uint, error) {
	lggr = logger.OrNop(lggr)
	var (
		attempts uint
		last     T
	)
	state := Attempting
	move := func(next State) {
		if !state.CanTransitionTo(next) {
			lggr.Errorw("invalid retry state transition", "from", state, "to", next)
		}
		state = next
	}

	err := retrygo.Do(
		func() error {
			if state == RetryWait {
				move(Attempting)
			}
			attempts++
			v, err := fn(attempts)
			last = v
			if err != nil {
				return err
			}
			return nil
		},
		retrygo.Context(ctx),
		retrygo.Attempts(p.MaxRetries+1),
		retrygo.Delay(p.Delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(func(err error) bool {
			cond, ok := Classify(err)
			if !ok {
				return false
			}
			if attempts > p.MaxRetries {
				return false
			}
			move(RetryWait)
			lggr.Infow("transient fee error, waiting to retry",
				"condition", cond, "attempt", attempts, "maxAttempts", p.MaxRetries+1, "delay", p.Delay, "err", err)
			return true
		}),
	)
	if err != nil {
		move(Fatal)
		lggr.Debugw("request failed", "attempts", attempts, "state", state, "err", err)
		return last, attempts, err
	}
	move(Success)
	return last, attempts, nil
}
