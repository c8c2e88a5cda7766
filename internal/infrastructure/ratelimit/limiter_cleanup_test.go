package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_EvictExpiredRemovesStaleIdentifiers(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1, TTL: time.Millisecond})
	defer l.Close()

	l.Allow("us-central1")
	time.Sleep(5 * time.Millisecond)

	l.evictExpired()
	assert.Equal(t, 0, l.Stats()["active_limiters"])
}

func TestLimiter_EvictOldestCapsMemoryUse(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1, TTL: time.Hour})
	defer l.Close()
	l.maxSize = 2

	l.Allow("a")
	l.Allow("b")
	l.Allow("c")

	assert.Equal(t, 2, l.Stats()["active_limiters"])
}
