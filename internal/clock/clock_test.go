package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal_SleepReturnsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	Real{}.Sleep(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFake_SleepWakesOnAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	woke := make(chan struct{})
	go func() {
		f.Sleep(context.Background(), 5*time.Second)
		close(woke)
	}()

	// Wait until the sleeper has registered, so its deadline is measured
	// from the starting time rather than from after the first Advance.
	for {
		f.mu.Lock()
		n := len(f.waiters)
		f.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	f.Advance(2 * time.Second)
	select {
	case <-woke:
		t.Fatal("sleep woke too early")
	case <-time.After(20 * time.Millisecond):
	}

	f.Advance(3 * time.Second)
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("sleep did not wake after advance")
	}
}

func TestFake_NowReflectsAdvances(t *testing.T) {
	start := time.Unix(1000, 0)
	f := NewFake(start)
	f.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), f.Now())
}
