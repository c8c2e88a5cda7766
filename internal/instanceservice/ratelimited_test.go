package instanceservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/ratelimit"
)

type countingService struct {
	gets int
}

func (c *countingService) List(context.Context, string, string) ([]entity.InstanceSnapshot, error) {
	return nil, nil
}
func (c *countingService) Get(context.Context, string) (entity.InstanceSnapshot, error) {
	c.gets++
	return entity.InstanceSnapshot{}, nil
}
func (c *countingService) Start(context.Context, string) (OperationHandle, error) { return "", nil }
func (c *countingService) BeginUpgrade(context.Context, string) (OperationHandle, error) {
	return "", nil
}
func (c *countingService) BeginRollback(context.Context, string) (OperationHandle, error) {
	return "", nil
}
func (c *countingService) GetOperation(context.Context, OperationHandle) (OperationOutcome, error) {
	return OperationOutcome{}, nil
}
func (c *countingService) CheckUpgradable(context.Context, string) (UpgradabilityInfo, error) {
	return UpgradabilityInfo{}, nil
}

func TestRateLimited_PassesThroughWhenAdmitted(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: 100, Burst: 10, TTL: time.Minute})
	defer limiter.Close()

	inner := &countingService{}
	svc := NewRateLimited(inner, limiter)

	_, err := svc.Get(context.Background(), "i1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets)
}

func TestRateLimited_PropagatesCancellation(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: 0.1, Burst: 1, TTL: time.Minute})
	defer limiter.Close()

	inner := &countingService{}
	svc := NewRateLimited(inner, limiter)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, _ = svc.Get(context.Background(), "i1") // consume the burst
	_, err := svc.Get(ctx, "i1")
	require.Error(t, err)
	assert.Equal(t, 1, inner.gets)
}
