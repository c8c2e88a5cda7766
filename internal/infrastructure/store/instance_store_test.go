package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInstanceStore_TryStartRejectsDuplicate(t *testing.T) {
	s := NewInstanceStore()
	assert.True(t, s.TryStart("i1", time.Now()))
	assert.False(t, s.TryStart("i1", time.Now()))
	assert.Equal(t, 1, s.Count())
}

func TestInstanceStore_CompleteFreesSlot(t *testing.T) {
	s := NewInstanceStore()
	s.TryStart("i1", time.Now())
	s.Complete("i1")

	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 1, s.Completed())
	assert.True(t, s.TryStart("i1", time.Now()))
}

func TestInstanceStore_InFlightListsRunningNames(t *testing.T) {
	s := NewInstanceStore()
	s.TryStart("i1", time.Now())
	s.TryStart("i2", time.Now())

	assert.ElementsMatch(t, []string{"i1", "i2"}, s.InFlight())
}
