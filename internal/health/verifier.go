// Package health implements the post-operation health verifier: confirm an
// instance has reached ACTIVE with an acceptable health signal within a
// bounded timeout.
package health

import (
	"context"
	"time"

	"github.com/erayguner/wbi-fleet-upgrade/internal/clock"
	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
)

// transientStates are tolerated while waiting for ACTIVE; any other
// non-ACTIVE state observed during verification counts as failure.
var transientStates = map[entity.InstanceState]struct{}{
	entity.StateProvisioning: {},
	entity.StateStarting:     {},
	entity.StateInitializing: {},
}

// Verify polls name until it reaches ACTIVE with HealthState ∈
// {HEALTHY, UNKNOWN}, or until timeout elapses. UNKNOWN is accepted because
// some provider builds never publish a health signal.
func Verify(ctx context.Context, svc instanceservice.InstanceService, name string, pollInterval, timeout time.Duration, c clock.Clock) error {
	deadline := c.Now().Add(timeout)

	for {
		snap, err := svc.Get(ctx, name)
		if err != nil {
			kind, msg := entity.AsServiceError(err)
			return entity.NewServiceError(kind, msg)
		}

		if snap.State == entity.StateActive && isAcceptableHealth(snap.HealthState) {
			return nil
		}
		if _, transient := transientStates[snap.State]; !transient && snap.State != entity.StateActive {
			return entity.NewServiceError(entity.ErrorKindUnexpected,
				"instance reached non-transient state "+string(snap.State)+" without becoming healthy")
		}

		if ctx.Err() != nil {
			return entity.NewServiceError(entity.ErrorKindCancelled, "cancelled during health verification")
		}
		if !c.Now().Before(deadline) {
			return entity.NewServiceError(entity.ErrorKindTimeout, "health verification timed out")
		}

		wait := pollInterval
		if remaining := deadline.Sub(c.Now()); wait > remaining {
			wait = remaining
		}
		c.Sleep(ctx, wait)
		if ctx.Err() != nil {
			return entity.NewServiceError(entity.ErrorKindCancelled, "cancelled during health verification")
		}
	}
}

func isAcceptableHealth(h entity.HealthState) bool {
	return h == entity.HealthHealthy || h == entity.HealthUnknown
}
