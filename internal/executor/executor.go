// Package executor implements the per-instance state machine: normalise,
// preflight, execute, track, verify, and optionally compensate — one call
// per discovered instance, producing exactly one
// entity.OperationResult.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/erayguner/wbi-fleet-upgrade/internal/clock"
	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/health"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
	"github.com/erayguner/wbi-fleet-upgrade/internal/rollback"
	"github.com/erayguner/wbi-fleet-upgrade/internal/tracker"
)

// Run drives one instance through the full lifecycle for cfg.Operation and
// returns its terminal OperationResult. It never panics and never returns
// an error: every outcome, including internal failures, is encoded in the
// returned result instead of flowing through exceptions.
func Run(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, snap entity.InstanceSnapshot, c clock.Clock) entity.OperationResult {
	startedAt := c.Now()
	result := entity.OperationResult{
		Instance:  snap.ShortName,
		Location:  snap.Location,
		Operation: cfg.Operation,
		StartedAt: &startedAt,
	}

	if ctx.Err() != nil {
		return finish(result, entity.StatusFailed, entity.ErrorKindCancelled, "cancelled before dispatch", c, startedAt)
	}

	working, normResult, ok := normalise(ctx, svc, cfg, snap, c, result)
	if !ok {
		return finishResult(normResult, c, startedAt)
	}

	switch cfg.Operation {
	case entity.OperationUpgrade:
		return runUpgrade(ctx, svc, cfg, snap, working, c, result, startedAt)
	case entity.OperationRollback:
		return runRollback(ctx, svc, cfg, snap, working, c, result, startedAt)
	default:
		return finish(result, entity.StatusFailed, entity.ErrorKindUnexpected, "unknown operation "+string(cfg.Operation), c, startedAt)
	}
}

// normalise brings the instance to ACTIVE when not in dry-run. It returns
// the effective state to act on downstream
// (working) and ok=false with a terminal result when normalisation itself
// is terminal (busy skip or start failure).
func normalise(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, snap entity.InstanceSnapshot, c clock.Clock, result entity.OperationResult) (entity.InstanceState, entity.OperationResult, bool) {
	if cfg.DryRun {
		// Dry runs never mutate; the evaluator/checkUpgradable sees the
		// instance's true state, including STOPPED/SUSPENDED.
		return snap.State, result, true
	}

	switch snap.State {
	case entity.StateActive:
		return entity.StateActive, result, true

	case entity.StateStopped, entity.StateSuspended:
		handle, kind, msg := tracker.RetryBegin(ctx, c, cfg.PollInterval, cfg.HealthCheckTimeout, func() (instanceservice.OperationHandle, error) {
			return svc.Start(ctx, snap.Name)
		})
		if kind != "" {
			if kind == entity.ErrorKindPreconditionViolated {
				return "", skip(result, entity.ErrorKindBusy, "start preempted: "+msg), false
			}
			return "", fail(result, kind, msg), false
		}

		trackKind, trackMsg := tracker.Track(ctx, svc, handle, cfg.PollInterval, cfg.HealthCheckTimeout, c)
		if trackKind == entity.ErrorKindCancelled {
			return "", fail(result, trackKind, trackMsg), false
		}
		if trackKind != "" {
			return "", fail(result, trackKind, "start failed: "+trackMsg), false
		}
		return entity.StateActive, result, true

	default:
		return "", skip(result, entity.ErrorKindBusy, "instance busy in state "+string(snap.State)), false
	}
}

func runUpgrade(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, snap entity.InstanceSnapshot, working entity.InstanceState, c clock.Clock, result entity.OperationResult, startedAt time.Time) entity.OperationResult {
	info, err := svc.CheckUpgradable(ctx, snap.Name)
	if err != nil {
		kind, msg := entity.AsServiceError(err)
		return finish(result, entity.StatusFailed, kind, msg, c, startedAt)
	}
	if !info.Upgradable {
		return finish(result, entity.StatusUpToDate, "", "", c, startedAt)
	}

	result.TargetVersion = info.TargetVersion
	if cfg.DryRun {
		return finish(result, entity.StatusDryRun, "", "", c, startedAt)
	}

	handle, kind, msg := tracker.RetryBegin(ctx, c, cfg.PollInterval, cfg.OperationTimeout, func() (instanceservice.OperationHandle, error) {
		return svc.BeginUpgrade(ctx, snap.Name)
	})
	if kind != "" {
		if kind == entity.ErrorKindPreconditionViolated {
			return finish(result, entity.StatusSkipped, entity.ErrorKindBusy, "beginUpgrade preempted: "+msg, c, startedAt)
		}
		return maybeCompensate(ctx, svc, cfg, snap, c, result, startedAt, kind, "beginUpgrade failed: "+msg)
	}

	trackKind, trackMsg := tracker.Track(ctx, svc, handle, cfg.PollInterval, cfg.OperationTimeout, c)
	if trackKind != "" {
		return maybeCompensate(ctx, svc, cfg, snap, c, result, startedAt, trackKind, "upgrade failed: "+trackMsg)
	}

	if err := health.Verify(ctx, svc, snap.Name, cfg.PollInterval, cfg.HealthCheckTimeout, c); err != nil {
		vKind, vMsg := entity.AsServiceError(err)
		return maybeCompensate(ctx, svc, cfg, snap, c, result, startedAt, vKind, "post-upgrade verification failed: "+vMsg)
	}

	return finish(result, entity.StatusSucceeded, "", "", c, startedAt)
}

func runRollback(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, snap entity.InstanceSnapshot, working entity.InstanceState, c clock.Clock, result entity.OperationResult, startedAt time.Time) entity.OperationResult {
	// In dry-run, eligibility is evaluated against the original snapshot so
	// a STOPPED/SUSPENDED instance reports the "would be started" SKIPPED
	// check instead of FAIL. Live, normalise() has already started the
	// instance, so eligibility must reflect working (the post-start state),
	// same as maybeCompensate refetching current state before evaluating.
	evalSnap := snap
	if !cfg.DryRun {
		evalSnap.State = working
	}
	eligible, checks := rollback.Evaluate(evalSnap, c.Now(), cfg.DryRun)
	result.PreChecks = checks

	if !eligible {
		return finish(result, entity.StatusSkipped, entity.ErrorKindIneligible, "not eligible for rollback", c, startedAt)
	}
	if cfg.DryRun {
		return finish(result, entity.StatusDryRun, "", "", c, startedAt)
	}
	if snap.PreviousVersion != "" {
		result.TargetVersion = snap.PreviousVersion
	}

	handle, kind, msg := tracker.RetryBegin(ctx, c, cfg.PollInterval, cfg.OperationTimeout, func() (instanceservice.OperationHandle, error) {
		return svc.BeginRollback(ctx, snap.Name)
	})
	if kind != "" {
		if kind == entity.ErrorKindPreconditionViolated {
			return finish(result, entity.StatusSkipped, entity.ErrorKindBusy, "beginRollback preempted: "+msg, c, startedAt)
		}
		return finish(result, entity.StatusFailed, kind, "beginRollback failed: "+msg, c, startedAt)
	}

	trackKind, trackMsg := tracker.Track(ctx, svc, handle, cfg.PollInterval, cfg.OperationTimeout, c)
	if trackKind != "" {
		return finish(result, entity.StatusFailed, trackKind, "rollback failed: "+trackMsg, c, startedAt)
	}

	if err := health.Verify(ctx, svc, snap.Name, cfg.PollInterval, cfg.HealthCheckTimeout, c); err != nil {
		vKind, vMsg := entity.AsServiceError(err)
		return finish(result, entity.StatusFailed, vKind, "post-rollback verification failed: "+vMsg, c, startedAt)
	}

	return finish(result, entity.StatusSucceeded, "", "", c, startedAt)
}

// maybeCompensate implements the compensating branch: an upgrade that
// failed mid-flight or post-verification is rolled back
// automatically when cfg.RollbackOnFailure is set and the instance remains
// eligible.
func maybeCompensate(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, snap entity.InstanceSnapshot, c clock.Clock, result entity.OperationResult, startedAt time.Time, originalKind entity.ErrorKind, originalMsg string) entity.OperationResult {
	if cfg.Operation != entity.OperationUpgrade || !cfg.RollbackOnFailure {
		return finish(result, entity.StatusFailed, originalKind, originalMsg, c, startedAt)
	}

	current, err := svc.Get(ctx, snap.Name)
	if err != nil {
		current = snap
	}

	eligible, checks := rollback.Evaluate(current, c.Now(), false)
	result.PreChecks = checks
	if !eligible {
		return finish(result, entity.StatusFailed, originalKind, originalMsg, c, startedAt)
	}

	handle, err := svc.BeginRollback(ctx, snap.Name)
	if err != nil {
		_, compMsg := entity.AsServiceError(err)
		return finish(result, entity.StatusFailed, originalKind,
			fmt.Sprintf("%s; compensation_error: beginRollback failed: %s", originalMsg, compMsg), c, startedAt)
	}

	kind, msg := tracker.Track(ctx, svc, handle, cfg.PollInterval, cfg.OperationTimeout, c)
	if kind != "" {
		return finish(result, entity.StatusFailed, originalKind,
			fmt.Sprintf("%s; compensation_error: rollback tracking failed: %s", originalMsg, msg), c, startedAt)
	}

	if err := health.Verify(ctx, svc, snap.Name, cfg.PollInterval, cfg.HealthCheckTimeout, c); err != nil {
		_, vMsg := entity.AsServiceError(err)
		return finish(result, entity.StatusFailed, originalKind,
			fmt.Sprintf("%s; compensation_error: post-rollback verification failed: %s", originalMsg, vMsg), c, startedAt)
	}

	result.Compensated = true
	return finish(result, entity.StatusCompensated, "", fmt.Sprintf("upgrade failed (%s: %s), compensated by rollback", originalKind, originalMsg), c, startedAt)
}

func skip(result entity.OperationResult, kind entity.ErrorKind, msg string) entity.OperationResult {
	result.Status = entity.StatusSkipped
	result.ErrorKind = kind
	result.ErrorMessage = msg
	return result
}

func fail(result entity.OperationResult, kind entity.ErrorKind, msg string) entity.OperationResult {
	result.Status = entity.StatusFailed
	result.ErrorKind = kind
	result.ErrorMessage = msg
	return result
}

func finish(result entity.OperationResult, status entity.ResultStatus, kind entity.ErrorKind, msg string, c clock.Clock, startedAt time.Time) entity.OperationResult {
	result.Status = status
	result.ErrorKind = kind
	result.ErrorMessage = msg
	return finishResult(result, c, startedAt)
}

func finishResult(result entity.OperationResult, c clock.Clock, startedAt time.Time) entity.OperationResult {
	finishedAt := c.Now()
	result.FinishedAt = &finishedAt
	d := finishedAt.Sub(startedAt).Seconds()
	result.DurationSeconds = &d
	return result
}
