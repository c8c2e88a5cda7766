// Package ratelimit throttles outbound provider API calls per location so a
// fleet run does not trip the provider's own rate limiting when MaxParallel
// fans many workers out against the same project.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/logger"
)

// Config holds limiter configuration.
type Config struct {
	RequestsPerSecond float64       // Provider calls allowed per second, per identifier
	Burst             int           // Maximum burst size
	TTL               time.Duration // How long to keep an identifier's limiter in memory
}

// DefaultConfig returns a reasonable default configuration.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
		TTL:               15 * time.Minute,
	}
}

// Limiter admits provider calls keyed by an arbitrary identifier, typically
// a location, so one noisy location cannot starve another's budget.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	maxSize  int // Maximum number of limiters to keep in memory

	stop chan struct{}
	once sync.Once
}

// New creates a Limiter and starts its background cleanup loop. Callers must
// call Close when the limiter is no longer needed.
func New(cfg Config) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		ttl:      cfg.TTL,
		maxSize:  10000,
		stop:     make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Wait blocks until a call for identifier is admitted or ctx is cancelled.
// This is the primary entry point for worker goroutines dispatching
// provider calls under a shared RunConfig.MaxParallel budget.
func (l *Limiter) Wait(ctx context.Context, identifier string) error {
	return l.limiterFor(identifier).Wait(ctx)
}

// Allow reports whether a call for identifier is admitted right now, without
// blocking the caller.
func (l *Limiter) Allow(identifier string) bool {
	allowed := l.limiterFor(identifier).Allow()
	if !allowed {
		logger.WithField("identifier", identifier).Warn("client-side rate limit exceeded")
	}
	return allowed
}

func (l *Limiter) limiterFor(identifier string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, exists := l.limiters[identifier]
	if !exists {
		if len(l.limiters) >= l.maxSize {
			l.evictOldest()
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[identifier] = lim
	}
	l.lastSeen[identifier] = time.Now()
	return lim
}

// evictOldest removes the least-recently-used entry. Caller must hold mu.
func (l *Limiter) evictOldest() {
	var oldestID string
	var oldestTime time.Time
	first := true

	for id, lastSeen := range l.lastSeen {
		if first || lastSeen.Before(oldestTime) {
			oldestID = id
			oldestTime = lastSeen
			first = false
		}
	}

	if oldestID != "" {
		delete(l.limiters, oldestID)
		delete(l.lastSeen, oldestID)
	}
}

// cleanupLoop removes limiters that haven't been used recently, bounding
// memory use across long-lived runs against many locations.
func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evictExpired()
		}
	}
}

func (l *Limiter) evictExpired() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	var toDelete []string
	for identifier, lastSeen := range l.lastSeen {
		if now.Sub(lastSeen) > l.ttl {
			toDelete = append(toDelete, identifier)
		}
	}
	for _, identifier := range toDelete {
		delete(l.limiters, identifier)
		delete(l.lastSeen, identifier)
	}

	if len(toDelete) > 0 {
		logger.WithField("count", len(toDelete)).Debug("cleaned up inactive rate limiters")
	}
}

// Close stops the background cleanup loop. Safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// Stats returns a snapshot of current limiter state, useful for reporting.
func (l *Limiter) Stats() map[string]interface{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"active_limiters":  len(l.limiters),
		"limit_per_second": float64(l.limit),
		"burst_size":       l.burst,
		"ttl_minutes":      int(l.ttl.Minutes()),
	}
}
