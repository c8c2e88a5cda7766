package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() RunConfig {
	c := DefaultRunConfig()
	c.Operation = OperationUpgrade
	c.Project = "p"
	c.Locations = []string{"a", "b"}
	return c
}

func TestRunConfig_Validate_OK(t *testing.T) {
	c, err := validConfig().Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.Locations)
}

func TestRunConfig_Validate_DedupesLocationsStably(t *testing.T) {
	c := validConfig()
	c.Locations = []string{"b", "a", "b", "a", "c"}
	got, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, got.Locations)
}

func TestRunConfig_Validate_RejectsBadOperation(t *testing.T) {
	c := validConfig()
	c.Operation = "REIMAGE"
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunConfig_Validate_RejectsEmptyProject(t *testing.T) {
	c := validConfig()
	c.Project = ""
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunConfig_Validate_RejectsEmptyLocations(t *testing.T) {
	c := validConfig()
	c.Locations = nil
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunConfig_Validate_MaxParallelBounds(t *testing.T) {
	for _, v := range []int{0, -1, 101} {
		c := validConfig()
		c.MaxParallel = v
		_, err := c.Validate()
		require.ErrorIsf(t, err, ErrConfigInvalid, "maxParallel=%d", v)
	}

	c := validConfig()
	c.MaxParallel = 100
	_, err := c.Validate()
	require.NoError(t, err)
}

func TestRunConfig_Validate_PollIntervalMinimum(t *testing.T) {
	c := validConfig()
	c.PollInterval = 4 * time.Second
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunConfig_Validate_PollIntervalMustNotExceedOperationTimeout(t *testing.T) {
	c := validConfig()
	c.OperationTimeout = 10 * time.Second
	c.PollInterval = 20 * time.Second
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunConfig_Validate_HealthCheckTimeoutMustNotExceedOperationTimeout(t *testing.T) {
	c := validConfig()
	c.OperationTimeout = 10 * time.Second
	c.PollInterval = 5 * time.Second
	c.HealthCheckTimeout = 600 * time.Second
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunConfig_Validate_NegativeStaggerRejected(t *testing.T) {
	c := validConfig()
	c.StaggerDelay = -1
	_, err := c.Validate()
	require.ErrorIs(t, err, ErrConfigInvalid)
}

func TestRunConfig_Validate_ZeroStaggerAllowed(t *testing.T) {
	c := validConfig()
	c.StaggerDelay = 0
	_, err := c.Validate()
	require.NoError(t, err)
}

func TestRunConfig_Validate_FillsZeroDefaults(t *testing.T) {
	c := validConfig()
	c.OperationTimeout = 0
	c.PollInterval = 0
	c.HealthCheckTimeout = 0
	got, err := c.Validate()
	require.NoError(t, err)
	assert.Equal(t, 7200*time.Second, got.OperationTimeout)
	assert.Equal(t, 20*time.Second, got.PollInterval)
	assert.Equal(t, 600*time.Second, got.HealthCheckTimeout)
}
