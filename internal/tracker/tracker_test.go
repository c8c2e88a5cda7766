package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erayguner/wbi-fleet-upgrade/internal/clock"
	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/instanceservice/fake"
)

func TestTrack_SucceedsAfterPendingPolls(t *testing.T) {
	svc := fake.New()
	handle, err := svc.BeginUpgrade(context.Background(), "i1")
	require.NoError(t, err)
	svc.ResolveOp(handle, 2, "", "")

	kind, msg := Track(context.Background(), svc, handle, 10*time.Millisecond, time.Second, clock.Real{})
	assert.Empty(t, kind)
	assert.Empty(t, msg)
}

func TestTrack_SurfacesOperationError(t *testing.T) {
	svc := fake.New()
	handle, err := svc.BeginUpgrade(context.Background(), "i1")
	require.NoError(t, err)
	svc.ResolveOp(handle, 0, entity.ErrorKindUnexpected, "provider blew up")

	kind, msg := Track(context.Background(), svc, handle, 10*time.Millisecond, time.Second, clock.Real{})
	assert.Equal(t, entity.ErrorKindUnexpected, kind)
	assert.Equal(t, "provider blew up", msg)
}

func TestTrack_TimesOutWhenNeverDone(t *testing.T) {
	svc := fake.New()
	handle, err := svc.BeginUpgrade(context.Background(), "i1")
	require.NoError(t, err)
	svc.ResolveOp(handle, 1000, "", "")

	kind, _ := Track(context.Background(), svc, handle, 10*time.Millisecond, 50*time.Millisecond, clock.Real{})
	assert.Equal(t, entity.ErrorKindTimeout, kind)
}

func TestTrack_CancellationStopsPromptly(t *testing.T) {
	svc := fake.New()
	handle, err := svc.BeginUpgrade(context.Background(), "i1")
	require.NoError(t, err)
	svc.ResolveOp(handle, 1000, "", "")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	kind, _ := Track(ctx, svc, handle, 10*time.Millisecond, time.Minute, clock.Real{})
	assert.Equal(t, entity.ErrorKindCancelled, kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTrack_RetriesTransientThenSucceeds(t *testing.T) {
	// Provider returns RATE_LIMITED four times, then succeeds on the fifth
	// call.
	svc := &retryingService{successAfter: 5}
	kind, _ := Track(context.Background(), svc, "h", 5*time.Millisecond, 2*time.Second, clock.Real{})
	assert.Empty(t, kind)
	assert.Equal(t, 5, svc.calls)
}

func TestTrack_ExceedsConsecutiveRetryCeiling(t *testing.T) {
	svc := &retryingService{successAfter: 999}
	kind, _ := Track(context.Background(), svc, "h", 2*time.Millisecond, 2*time.Second, clock.Real{})
	assert.Equal(t, entity.ErrorKindRateLimited, kind)
	assert.Equal(t, maxConsecutiveRetries+1, svc.calls)
}
