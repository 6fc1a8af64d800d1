package cache

import (
	"context"
	"time"
)

// removalGracePeriod is the time a tombstoned node remains visible-as-absent
// before being dropped, so late writers can detect the removal and skip it.
const removalGracePeriod = 30 * time.Second

// sweepInterval is the background sweeper's run period.
const sweepInterval = 10 * time.Second

// RunSweeper starts the background sweeper: for each node, if removed and
// age-since-mark >= the grace period, drop it; else if age-since-write >=
// TTL, mark it removed. One sweeper per process per cache instance. Blocks
// until ctx is cancelled.
func (c *Cache[T]) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// Stop halts a running sweeper started with RunSweeper.
func (c *Cache[T]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache[T]) sweep() {
	now := time.Now()

	c.mu.Lock()
	toDrop := make([]string, 0)
	for key, n := range c.primary {
		n.mu.Lock()
		switch {
		case n.removed && now.Sub(n.removedAt) >= removalGracePeriod:
			toDrop = append(toDrop, key)
		case !n.removed && n.hasValue && c.ttl > 0 && now.Sub(n.writtenAt) >= c.ttl:
			n.removed = true
			n.removedAt = now
		}
		n.mu.Unlock()
	}
	for _, key := range toDrop {
		delete(c.primary, key)
	}
	c.mu.Unlock()
}
