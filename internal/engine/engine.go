// Package engine is the library's single exported entry point: validate
// configuration, then hand off to the scheduler. It performs no I/O
// itself.
package engine

import (
	"context"

	"github.com/erayguner/wbi-fleet-upgrade/internal/clock"
	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice"
	"github.com/erayguner/wbi-fleet-upgrade/internal/scheduler"
)

// Run validates cfg and, if valid, runs one fleet operation to completion,
// returning the resulting FleetReport. A validation failure is returned as
// an error before any call reaches svc: CONFIG_INVALID is surfaced before
// I/O, never embedded in a report.
//
// Cancellation is cooperative: cancelling ctx stops the scheduler from
// admitting new work and causes in-flight workers to finish their current
// poll and report CANCELLED, rather than interrupting them mid-call.
func Run(ctx context.Context, svc instanceservice.InstanceService, cfg entity.RunConfig, c clock.Clock) (entity.FleetReport, error) {
	validated, err := cfg.Validate()
	if err != nil {
		return entity.FleetReport{}, err
	}

	return scheduler.Run(ctx, svc, validated, c), nil
}
