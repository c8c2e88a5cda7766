// Package scheduler implements fleet-wide orchestration: discover
// candidate instances across the configured locations, admit them,
// dispatch one executor per instance under a bounded-concurrency worker
// pool, and aggregate the results into a FleetReport.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erayguner/wbi-fleet-upgrade/internal/clock"
	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/executor"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/logger"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/metrics"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/store"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/worker"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
)

// Run discovers, admits, and dispatches work for cfg, returning the
// completed FleetReport. It never panics and never returns an error; a
// discovery failure, or an instance filter that matches nothing, is
// explained in the report's Message field. An empty fleet yields a report
// with no results and an empty Message.
func Run(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, c clock.Clock) entity.FleetReport {
	startedAt := c.Now()

	candidates, message, err := discover(ctx, svc, cfg)
	if err != nil {
		kind, msg := entity.AsServiceError(err)
		return entity.FleetReport{
			StartedAt:  startedAt,
			FinishedAt: c.Now(),
			Config:     cfg.Redacted(),
			Message:    fmt.Sprintf("discovery failed: %s: %s", kind, msg),
		}
	}
	if len(candidates) == 0 {
		finishedAt := c.Now()
		return entity.FleetReport{
			StartedAt:       startedAt,
			FinishedAt:      finishedAt,
			DurationSeconds: finishedAt.Sub(startedAt).Seconds(),
			Config:          cfg.Redacted(),
			Message:         message,
		}
	}

	results := dispatch(ctx, svc, cfg, candidates, c)

	sort.Slice(results, func(i, j int) bool {
		if results[i].Location != results[j].Location {
			return results[i].Location < results[j].Location
		}
		return results[i].Instance < results[j].Instance
	})

	finishedAt := c.Now()
	report := entity.FleetReport{
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		DurationSeconds: finishedAt.Sub(startedAt).Seconds(),
		Config:          cfg.Redacted(),
		Statistics:      entity.ComputeStatistics(results),
		Results:         results,
	}
	metrics.RunDuration.WithLabelValues(string(cfg.Operation)).Observe(report.DurationSeconds)
	return report
}

// discover lists candidates across cfg.Locations in order, optionally
// filtered to a single instance short name.
func discover(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig) ([]entity.InstanceSnapshot, string, error) {
	var all []entity.InstanceSnapshot
	for _, location := range cfg.Locations {
		snaps, err := svc.List(ctx, cfg.Project, location)
		if err != nil {
			return nil, "", err
		}
		all = append(all, snaps...)
	}

	if cfg.Instance == "" {
		return all, "", nil
	}

	var filtered []entity.InstanceSnapshot
	for _, s := range all {
		if s.ShortName == cfg.Instance {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Sprintf("no instance named %q found in any of the configured locations", cfg.Instance), nil
	}
	return filtered, "", nil
}

// dispatch admits and runs one executor per candidate under cfg.MaxParallel,
// staggering dispatches by cfg.StaggerDelay and propagating ctx cancellation
// into every in-flight worker.
func dispatch(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, candidates []entity.InstanceSnapshot, c clock.Clock) []entity.OperationResult {
	pool := worker.NewPoolWithContext(ctx, cfg.MaxParallel, len(candidates))
	defer func() {
		_ = pool.Shutdown(30 * time.Second)
	}()

	instanceStore := store.NewInstanceStore()

	results := make([]entity.OperationResult, 0, len(candidates))
	var mu sync.Mutex
	var wg sync.WaitGroup

	var lastDispatch time.Time
	for i, snap := range candidates {
		snap := snap // the submitted task runs after the loop has moved on
		if admitted, result := admit(snap); !admitted {
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			continue
		}

		if ctx.Err() != nil {
			mu.Lock()
			results = append(results, cancelledResult(cfg, snap, c))
			mu.Unlock()
			continue
		}

		if i > 0 && cfg.StaggerDelay > 0 {
			wait := cfg.StaggerDelay - c.Now().Sub(lastDispatch)
			if wait > 0 {
				c.Sleep(ctx, wait)
			}
		}
		lastDispatch = c.Now()

		if !instanceStore.TryStart(snap.Name, lastDispatch) {
			logger.WithFields(map[string]interface{}{
				"instance": snap.ShortName, "location": snap.Location, "phase": "dispatch",
			}).Warn("instance already has an operation in flight, skipping duplicate dispatch")
			mu.Lock()
			results = append(results, fail(cfg, snap, c, entity.ErrorKindBusy, "duplicate dispatch: instance already has an operation in flight"))
			mu.Unlock()
			continue
		}

		wg.Add(1)
		metrics.DispatchTotal.WithLabelValues(string(cfg.Operation)).Inc()
		submitErr := pool.Submit(func(taskCtx context.Context) {
			defer wg.Done()
			defer instanceStore.Complete(snap.Name)

			metrics.InFlight.Inc()
			defer metrics.InFlight.Dec()

			log := logger.WithFields(map[string]interface{}{
				"instance": snap.ShortName,
				"location": snap.Location,
				"phase":    "dispatch",
			})
			log.Info("executor starting")

			result := executor.Run(taskCtx, svc, cfg, snap, c)

			metrics.ResultTotal.WithLabelValues(string(cfg.Operation), string(result.Status)).Inc()
			if result.DurationSeconds != nil {
				metrics.InstanceDuration.WithLabelValues(string(result.Status)).Observe(*result.DurationSeconds)
			}
			logger.WithFields(map[string]interface{}{
				"instance": snap.ShortName,
				"location": snap.Location,
				"phase":    "complete",
				"status":   result.Status,
			}).Info("executor finished")

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			instanceStore.Complete(snap.Name)
			mu.Lock()
			results = append(results, fail(cfg, snap, c, entity.ErrorKindUnexpected, "dispatch failed: "+submitErr.Error()))
			mu.Unlock()
		}
	}

	wg.Wait()
	return results
}

// admit rejects an instance whose state is unknown to the schema.
func admit(snap entity.InstanceSnapshot) (bool, entity.OperationResult) {
	if snap.State != entity.StateUnknown {
		return true, entity.OperationResult{}
	}
	return false, entity.OperationResult{
		Instance:     snap.ShortName,
		Location:     snap.Location,
		Status:       entity.StatusSkipped,
		ErrorKind:    entity.ErrorKindIneligible,
		ErrorMessage: "instance state not recognised by schema",
	}
}

func cancelledResult(cfg entity.RunConfig, snap entity.InstanceSnapshot, c clock.Clock) entity.OperationResult {
	return fail(cfg, snap, c, entity.ErrorKindCancelled, "cancelled before dispatch")
}

func fail(cfg entity.RunConfig, snap entity.InstanceSnapshot, c clock.Clock, kind entity.ErrorKind, msg string) entity.OperationResult {
	now := c.Now()
	d := 0.0
	return entity.OperationResult{
		Instance:        snap.ShortName,
		Location:        snap.Location,
		Operation:       cfg.Operation,
		Status:          entity.StatusFailed,
		ErrorKind:       kind,
		ErrorMessage:    msg,
		StartedAt:       &now,
		FinishedAt:      &now,
		DurationSeconds: &d,
	}
}
