// Package tracker implements the long-running operation poller: given an
// OperationHandle, block until the provider reports completion, the
// wall-clock budget is exhausted, or the caller cancels. Retry/backoff
// against transient transport errors lives here and nowhere else in the
// engine.
package tracker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/erayguner/wbi-fleet-upgrade/internal/clock"
	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
)

const (
	jitterFraction        = 0.20
	maxConsecutiveRetries = 5
	backoffIntervalCap    = 120 * time.Second
)

// Track polls handle at pollInterval (± jitter) until it resolves, applying
// exponential backoff to transient/rate-limited poll failures, capped at
// min(5×pollInterval, 120s) and at maxConsecutiveRetries consecutive
// failures. It returns a zero-value ErrorKind on success.
func Track(ctx context.Context, svc instanceservice.InstanceService, handle instanceservice.OperationHandle, pollInterval, operationTimeout time.Duration, c clock.Clock) (entity.ErrorKind, string) {
	deadline := c.Now().Add(operationTimeout)

	maxInterval := 5 * pollInterval
	if maxInterval > backoffIntervalCap {
		maxInterval = backoffIntervalCap
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = pollInterval
	eb.MaxInterval = maxInterval
	eb.Multiplier = 2
	eb.RandomizationFactor = jitterFraction
	eb.MaxElapsedTime = 0 // the deadline above is the only elapsed-time budget

	consecutiveTransient := 0

	for {
		if ctx.Err() != nil {
			return entity.ErrorKindCancelled, "cancelled before poll"
		}
		if !c.Now().Before(deadline) {
			return entity.ErrorKindTimeout, "operation timed out waiting for completion"
		}

		wait := capToRemaining(jitteredInterval(pollInterval), deadline, c)
		c.Sleep(ctx, wait)
		if ctx.Err() != nil {
			return entity.ErrorKindCancelled, "cancelled during poll wait"
		}

		outcome, err := svc.GetOperation(ctx, handle)
		if err != nil {
			kind, msg := entity.AsServiceError(err)
			if !isRetryable(kind) {
				return kind, msg
			}

			consecutiveTransient++
			if consecutiveTransient > maxConsecutiveRetries {
				return kind, fmt.Sprintf("exceeded %d consecutive transient retries: %s", maxConsecutiveRetries, msg)
			}

			backoffWait := eb.NextBackOff()
			if backoffWait == backoff.Stop {
				return kind, msg
			}
			c.Sleep(ctx, capToRemaining(backoffWait, deadline, c))
			if ctx.Err() != nil {
				return entity.ErrorKindCancelled, "cancelled during retry backoff"
			}
			continue
		}

		consecutiveTransient = 0
		eb.Reset()

		if !outcome.Done {
			continue
		}
		if outcome.ErrorKind != "" {
			return outcome.ErrorKind, outcome.ErrorMessage
		}
		return "", ""
	}
}

func isRetryable(kind entity.ErrorKind) bool {
	return kind == entity.ErrorKindTransient || kind == entity.ErrorKindRateLimited
}

// RetryBegin retries a single begin-style call (start/beginUpgrade/
// beginRollback) against the same backoff schedule and retry ceiling as
// Track's poll loop, so a provider that answers RATE_LIMITED or TRANSIENT
// to the initial call does not fail the worker outright before the
// 5-retry ceiling is hit, same as a failure during polling.
// Returns the handle and a zero ErrorKind on success.
func RetryBegin(ctx context.Context, c clock.Clock, pollInterval, budget time.Duration, call func() (instanceservice.OperationHandle, error)) (instanceservice.OperationHandle, entity.ErrorKind, string) {
	deadline := c.Now().Add(budget)

	maxInterval := 5 * pollInterval
	if maxInterval > backoffIntervalCap {
		maxInterval = backoffIntervalCap
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = pollInterval
	eb.MaxInterval = maxInterval
	eb.Multiplier = 2
	eb.RandomizationFactor = jitterFraction
	eb.MaxElapsedTime = 0

	consecutiveTransient := 0

	for {
		if ctx.Err() != nil {
			return "", entity.ErrorKindCancelled, "cancelled before call"
		}

		handle, err := call()
		if err == nil {
			return handle, "", ""
		}

		kind, msg := entity.AsServiceError(err)
		if !isRetryable(kind) {
			return "", kind, msg
		}

		consecutiveTransient++
		if consecutiveTransient > maxConsecutiveRetries {
			return "", kind, fmt.Sprintf("exceeded %d consecutive transient retries: %s", maxConsecutiveRetries, msg)
		}
		if !c.Now().Before(deadline) {
			return "", entity.ErrorKindTimeout, "timed out retrying after " + msg
		}

		backoffWait := eb.NextBackOff()
		if backoffWait == backoff.Stop {
			return "", kind, msg
		}
		c.Sleep(ctx, capToRemaining(backoffWait, deadline, c))
		if ctx.Err() != nil {
			return "", entity.ErrorKindCancelled, "cancelled during retry backoff"
		}
	}
}

// jitteredInterval returns base scaled by a uniform factor in
// [1-jitterFraction, 1+jitterFraction].
func jitteredInterval(base time.Duration) time.Duration {
	jitter := (rand.Float64()*2 - 1) * jitterFraction
	return time.Duration(float64(base) * (1 + jitter))
}

func capToRemaining(d time.Duration, deadline time.Time, c clock.Clock) time.Duration {
	if remaining := deadline.Sub(c.Now()); d > remaining {
		return remaining
	}
	return d
}
