// Package rollback implements the rollback eligibility evaluator: a pure
// decision function over instance metadata, grounded on the ordered
// pre-checks of FleetRollback._check_instance_state /
// _check_upgrade_history / _check_rollback_window.
package rollback

import (
	"time"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
)

const (
	checkInstanceState   = "instance_state"
	checkUpgradeHistory  = "upgrade_history"
	checkPreviousVersion = "previous_version"
	checkRollbackWindow  = "rollback_window"
)

// Evaluate runs all four named checks, in fixed order, against snap as
// observed at now. It never performs I/O and never panics: every input
// combination produces a verdict.
//
// dryRun distinguishes the executor's normalisation-skipping path: in a
// dry run a STOPPED/SUSPENDED instance is never started, so the
// instance_state check is reported SKIPPED rather than FAILED, with the
// remaining checks still evaluated against the instance's actual metadata.
func Evaluate(snap entity.InstanceSnapshot, now time.Time, dryRun bool) (bool, []entity.PreCheck) {
	checks := []entity.PreCheck{
		checkInstanceStateFn(snap, dryRun),
		checkUpgradeHistoryFn(snap),
		checkPreviousVersionFn(snap),
		checkRollbackWindowFn(snap, now),
	}

	eligible := true
	for _, c := range checks {
		if c.Verdict == entity.VerdictFail {
			eligible = false
		}
	}
	return eligible, checks
}

func checkInstanceStateFn(snap entity.InstanceSnapshot, dryRun bool) entity.PreCheck {
	if snap.State == entity.StateActive {
		return entity.PreCheck{Name: checkInstanceState, Verdict: entity.VerdictPass, Message: "instance is ACTIVE"}
	}

	if dryRun && (snap.State == entity.StateStopped || snap.State == entity.StateSuspended) {
		return entity.PreCheck{
			Name:    checkInstanceState,
			Verdict: entity.VerdictSkipped,
			Message: "would be started before rollback",
		}
	}

	return entity.PreCheck{
		Name:    checkInstanceState,
		Verdict: entity.VerdictFail,
		Message: "instance is not ACTIVE (state=" + string(snap.State) + ")",
	}
}

func checkUpgradeHistoryFn(snap entity.InstanceSnapshot) entity.PreCheck {
	if snap.LastUpgradeAt == nil {
		return entity.PreCheck{Name: checkUpgradeHistory, Verdict: entity.VerdictFail, Message: "no recorded upgrade history"}
	}
	return entity.PreCheck{
		Name:    checkUpgradeHistory,
		Verdict: entity.VerdictPass,
		Message: "last upgraded at " + snap.LastUpgradeAt.Format(time.RFC3339),
	}
}

func checkPreviousVersionFn(snap entity.InstanceSnapshot) entity.PreCheck {
	if snap.PreviousVersion == "" {
		return entity.PreCheck{Name: checkPreviousVersion, Verdict: entity.VerdictFail, Message: "no previous version recorded"}
	}
	return entity.PreCheck{Name: checkPreviousVersion, Verdict: entity.VerdictPass, Message: "previous version " + snap.PreviousVersion}
}

func checkRollbackWindowFn(snap entity.InstanceSnapshot, now time.Time) entity.PreCheck {
	if snap.RollbackWindowExpiresAt == nil {
		return entity.PreCheck{Name: checkRollbackWindow, Verdict: entity.VerdictPass, Message: "no expiry recorded, window treated as open"}
	}
	if snap.RollbackWindowExpiresAt.After(now) {
		return entity.PreCheck{Name: checkRollbackWindow, Verdict: entity.VerdictPass, Message: "window open until " + snap.RollbackWindowExpiresAt.Format(time.RFC3339)}
	}
	return entity.PreCheck{Name: checkRollbackWindow, Verdict: entity.VerdictFail, Message: "window expired at " + snap.RollbackWindowExpiresAt.Format(time.RFC3339)}
}
