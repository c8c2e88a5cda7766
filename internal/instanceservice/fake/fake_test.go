package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
)

func TestService_ListAndGet(t *testing.T) {
	s := New(entity.InstanceSnapshot{Name: "projects/p/locations/a/instances/i1", Location: "a"})

	got, err := s.List(context.Background(), "p", "a")
	require.NoError(t, err)
	require.Len(t, got, 1)

	snap, err := s.Get(context.Background(), "projects/p/locations/a/instances/i1")
	require.NoError(t, err)
	assert.Equal(t, "projects/p/locations/a/instances/i1", snap.Name)
}

func TestService_GetUnknownInstance(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "does-not-exist")
	kind, _ := entity.AsServiceError(err)
	assert.Equal(t, entity.ErrorKindNotFound, kind)
}

func TestService_QueueBeginFault_ThenSucceeds(t *testing.T) {
	s := New()
	name := "i1"
	s.QueueBeginFault("BeginUpgrade", name, entity.NewServiceError(entity.ErrorKindRateLimited, "throttled"))

	_, err := s.BeginUpgrade(context.Background(), name)
	kind, _ := entity.AsServiceError(err)
	assert.Equal(t, entity.ErrorKindRateLimited, kind)

	handle, err := s.BeginUpgrade(context.Background(), name)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)
}

func TestService_ResolveOp_PendingThenDone(t *testing.T) {
	s := New()
	handle, err := s.BeginUpgrade(context.Background(), "i1")
	require.NoError(t, err)
	s.ResolveOp(handle, 2, "", "")

	out, err := s.GetOperation(context.Background(), handle)
	require.NoError(t, err)
	assert.False(t, out.Done)

	out, err = s.GetOperation(context.Background(), handle)
	require.NoError(t, err)
	assert.False(t, out.Done)

	out, err = s.GetOperation(context.Background(), handle)
	require.NoError(t, err)
	assert.True(t, out.Done)
}

func TestService_MutatingCalls_ExcludesReads(t *testing.T) {
	s := New(entity.InstanceSnapshot{Name: "i1", Location: "a"})
	ctx := context.Background()

	_, _ = s.Get(ctx, "i1")
	_, _ = s.CheckUpgradable(ctx, "i1")
	_, _ = s.BeginUpgrade(ctx, "i1")

	calls := s.MutatingCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "BeginUpgrade", calls[0].Method)
}
