package cache

import (
	"context"
	"time"
)

// Remote is the remote byte-bucket mirror interface C3 depends on: crash
// recovery storage only, never read from on the realtime hot path.
type Remote interface {
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Scan iterates every key under prefix in chunked scans, invoking fn with
	// the stored payload for each. A cache remote miss for any single key is
	// ignored, not propagated.
	Scan(ctx context.Context, prefix string, fn func(key string, payload []byte) error) error
}
