// Package instanceservice defines the capability surface the fleet engine
// needs from a cloud provider's notebook-instance API, and ships an
// HTTP-based implementation grounded on the REST shape of the Vertex AI
// Workbench Instances v2 API.
package instanceservice

import (
	"context"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
)

// OperationHandle is the opaque identifier returned by a mutating call.
// Callers pass it to GetOperation unmodified; only the adapter knows its
// internal shape.
type OperationHandle string

// OperationOutcome is what GetOperation reports about a long-running
// provider-side job.
type OperationOutcome struct {
	Done         bool
	ErrorKind    entity.ErrorKind // zero value when Done && no error
	ErrorMessage string
}

// UpgradabilityInfo is the result of a read-only upgradability probe.
type UpgradabilityInfo struct {
	Upgradable    bool
	TargetVersion string
}

// InstanceService is the minimal capability set the engine requires from
// the provider. Implementations must be safe for concurrent use by many
// workers and must hold no session state that a concurrent caller could
// corrupt.
//
// Every method may fail with a *entity.ServiceError carrying one of the
// ErrorKind values in entity/errors.go; callers extract it with
// entity.AsServiceError.
type InstanceService interface {
	// List returns instances in location, in stable order by resource name.
	List(ctx context.Context, project, location string) ([]entity.InstanceSnapshot, error)

	// Get re-reads a single instance by fully qualified name.
	Get(ctx context.Context, name string) (entity.InstanceSnapshot, error)

	// Start begins bringing a STOPPED/SUSPENDED instance to ACTIVE. Legal
	// only in those two states; otherwise returns PRECONDITION_VIOLATED.
	Start(ctx context.Context, name string) (OperationHandle, error)

	// BeginUpgrade begins an upgrade. Legal only when the instance is
	// ACTIVE and upgradable.
	BeginUpgrade(ctx context.Context, name string) (OperationHandle, error)

	// BeginRollback begins a rollback to the previously captured version.
	// Legal only when the instance is ACTIVE.
	BeginRollback(ctx context.Context, name string) (OperationHandle, error)

	// GetOperation is an idempotent, single-attempt poll of a long-running
	// operation's status. Retry/backoff policy lives in the tracker, not
	// here.
	GetOperation(ctx context.Context, handle OperationHandle) (OperationOutcome, error)

	// CheckUpgradable is a read-only probe, independent of Get, since some
	// providers compute upgradability lazily.
	CheckUpgradable(ctx context.Context, name string) (UpgradabilityInfo, error)
}
