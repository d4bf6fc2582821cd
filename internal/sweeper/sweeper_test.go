package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingReclaimer struct {
	mu     sync.Mutex
	calls  int
	gotTTL time.Duration
	err    error
}

func (c *countingReclaimer) Reclaim(olderThan time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.gotTTL = olderThan
	return 1, c.err
}

func (c *countingReclaimer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type countingPurger struct {
	mu    sync.Mutex
	calls int
}

func (c *countingPurger) Purge(time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 0, nil
}

func (c *countingPurger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestWorkerSweepsImmediatelyAndOnTicks(t *testing.T) {
	assets := &countingReclaimer{}
	hist := &countingPurger{}
	w := New(assets, hist, time.Hour, 24*time.Hour, 5*time.Millisecond)

	w.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	w.Stop()

	if got := assets.count(); got < 2 {
		t.Errorf("reclaim ran %d times, want at least the immediate pass plus ticks", got)
	}
	if got := hist.count(); got < 2 {
		t.Errorf("purge ran %d times, want at least 2", got)
	}

	assets.mu.Lock()
	ttl := assets.gotTTL
	assets.mu.Unlock()
	if ttl != time.Hour {
		t.Errorf("reclaim TTL = %v, want 1h", ttl)
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	assets := &countingReclaimer{}
	ctx, cancel := context.WithCancel(context.Background())

	w := New(assets, nil, time.Hour, 0, 5*time.Millisecond)
	w.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	before := assets.count()
	time.Sleep(30 * time.Millisecond)
	if after := assets.count(); after != before {
		t.Errorf("sweeps continued after cancel: %d -> %d", before, after)
	}
}

func TestWorkerSurvivesReclaimErrors(t *testing.T) {
	assets := &countingReclaimer{err: errors.New("disk trouble")}
	hist := &countingPurger{}
	w := New(assets, hist, time.Hour, 24*time.Hour, 5*time.Millisecond)

	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	if got := hist.count(); got < 1 {
		t.Errorf("purge ran %d times, want the sweep to continue past reclaim errors", got)
	}
}

func TestWorkerNilHistory(t *testing.T) {
	assets := &countingReclaimer{}
	w := New(assets, nil, time.Hour, 0, 5*time.Millisecond)

	w.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	w.Stop()

	if got := assets.count(); got < 1 {
		t.Errorf("reclaim ran %d times, want at least 1", got)
	}
}
