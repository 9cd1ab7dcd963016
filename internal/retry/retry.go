// Package retry is the single retry combinator every provider call
// goes through.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/rs/zerolog"
)

// Policy describes one retry discipline.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration
	// RetryOn decides whether an error is worth another attempt. Nil
	// retries everything except context cancellation.
	RetryOn func(error) bool
}

// DefaultPolicy matches the pipeline's provider discipline:
// exponential backoff from 1s capped at 60s.
func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		CapDelay:    60 * time.Second,
	}
}

// Do runs fn under the policy and returns its last result.
func Do[R any](p Policy, logger zerolog.Logger, fn func() (R, error)) (R, error) {
	return failsafe.Get(fn, build[R](p, logger))
}

func build[R any](p Policy, logger zerolog.Logger) failsafe.Policy[R] {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.CapDelay <= 0 {
		p.CapDelay = 60 * time.Second
	}

	return retrypolicy.Builder[R]().
		HandleIf(func(_ R, err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return false
			}
			if p.RetryOn != nil {
				return p.RetryOn(err)
			}
			return true
		}).
		AbortOnErrors(context.Canceled).
		WithMaxAttempts(p.MaxAttempts).
		ReturnLastFailure().
		WithBackoffFactor(p.BaseDelay, p.CapDelay, 2.0).
		OnRetry(func(evt failsafe.ExecutionEvent[R]) {
			logger.Warn().
				Int("attempt", evt.Attempts()).
				Err(evt.LastError()).
				Msg("attempt failed, retrying")
		}).
		Build()
}
