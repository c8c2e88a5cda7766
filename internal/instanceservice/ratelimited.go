package instanceservice

import (
	"context"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/ratelimit"
)

// rateLimited wraps an InstanceService, admitting every call through a
// client-side Limiter keyed by location (or "global" for calls with no
// location, like Get/operation polling) before it reaches the provider.
// This is independent of the tracker's server-side RATE_LIMITED backoff:
// it throttles outbound request rate pre-emptively instead of reacting to
// a 429.
type rateLimited struct {
	inner   InstanceService
	limiter *ratelimit.Limiter
}

// NewRateLimited wraps inner so every call is admitted through limiter
// first.
func NewRateLimited(inner InstanceService, limiter *ratelimit.Limiter) InstanceService {
	return &rateLimited{inner: inner, limiter: limiter}
}

func (r *rateLimited) wait(ctx context.Context, key string) error {
	if err := r.limiter.Wait(ctx, key); err != nil {
		return entity.NewServiceError(entity.ErrorKindCancelled, err.Error())
	}
	return nil
}

func (r *rateLimited) List(ctx context.Context, project, location string) ([]entity.InstanceSnapshot, error) {
	if err := r.wait(ctx, location); err != nil {
		return nil, err
	}
	return r.inner.List(ctx, project, location)
}

func (r *rateLimited) Get(ctx context.Context, name string) (entity.InstanceSnapshot, error) {
	if err := r.wait(ctx, "global"); err != nil {
		return entity.InstanceSnapshot{}, err
	}
	return r.inner.Get(ctx, name)
}

func (r *rateLimited) Start(ctx context.Context, name string) (OperationHandle, error) {
	if err := r.wait(ctx, "global"); err != nil {
		return "", err
	}
	return r.inner.Start(ctx, name)
}

func (r *rateLimited) BeginUpgrade(ctx context.Context, name string) (OperationHandle, error) {
	if err := r.wait(ctx, "global"); err != nil {
		return "", err
	}
	return r.inner.BeginUpgrade(ctx, name)
}

func (r *rateLimited) BeginRollback(ctx context.Context, name string) (OperationHandle, error) {
	if err := r.wait(ctx, "global"); err != nil {
		return "", err
	}
	return r.inner.BeginRollback(ctx, name)
}

func (r *rateLimited) GetOperation(ctx context.Context, handle OperationHandle) (OperationOutcome, error) {
	if err := r.wait(ctx, "global"); err != nil {
		return OperationOutcome{}, err
	}
	return r.inner.GetOperation(ctx, handle)
}

func (r *rateLimited) CheckUpgradable(ctx context.Context, name string) (UpgradabilityInfo, error) {
	if err := r.wait(ctx, "global"); err != nil {
		return UpgradabilityInfo{}, err
	}
	return r.inner.CheckUpgradable(ctx, name)
}

var _ InstanceService = (*rateLimited)(nil)
