// Package cache implements the versioned data cache described in spec.md §4.3:
// a local, write-through, background-replicated cache keyed by primary plus
// optional secondary key, with monotonic-version conflict resolution, TTL
// eviction and deferred-removal semantics. It is the hot realtime snapshot:
// reads dominate by orders of magnitude, so the local map is authoritative
// and the remote store (Remote, see remote.go) is only a crash-recovery
// mirror. The style — a mutex-guarded map plus a version counter and a
// background sweeper goroutine — is adapted from the pack's in-memory cache
// pattern (r3e-network-service_layer's infrastructure/cache), generalized
// here to generics, CAS semantics, and primary/secondary key aliasing.
package cache

import (
	"context"
	"sync"
	"time"
)

// Versioned is the contract a cached value type T must satisfy.
type Versioned interface {
	Version() int64
}

// KeyFuncs extracts the primary and (optional) secondary key of a value.
type KeyFuncs[T Versioned] struct {
	PrimaryKey   func(T) string
	SecondaryKey func(T) (string, bool)
}

// node is the mutable cell a primary key (and any secondary-key alias) point
// to. Replacement is a CAS on value+version; removal is a separate CAS on
// the removed flag, so secondary-key readers observe both atomically.
type node[T Versioned] struct {
	mu        sync.RWMutex
	value     T
	hasValue  bool
	removed   bool
	removedAt time.Time
	writtenAt time.Time
}

// Cache is the generic versioned data cache, parameterised by a value type T
// that carries a monotonic version, a primary key, and an optional secondary
// key.
type Cache[T Versioned] struct {
	keys   KeyFuncs[T]
	ttl    time.Duration
	remote Remote

	mu         sync.RWMutex
	primary    map[string]*node[T]
	secondary  map[string]*node[T]

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds a versioned cache. remote may be nil, in which case set/pull
// are local-only (acceptable: "100% data correctness is not required" from
// the remote side).
func New[T Versioned](keys KeyFuncs[T], ttl time.Duration, remote Remote) *Cache[T] {
	c := &Cache[T]{
		keys:      keys,
		ttl:       ttl,
		remote:    remote,
		primary:   make(map[string]*node[T]),
		secondary: make(map[string]*node[T]),
		stopCh:    make(chan struct{}),
	}
	return c
}

// FindPrimary returns the current value for a primary key, or absent. Never
// blocks on the remote store.
func (c *Cache[T]) FindPrimary(key string) (T, bool) {
	c.mu.RLock()
	n, ok := c.primary[key]
	c.mu.RUnlock()
	if !ok {
		return zero[T](), false
	}
	return n.read()
}

// FindSecondary returns the current value aliased by a secondary key.
func (c *Cache[T]) FindSecondary(key string) (T, bool) {
	c.mu.RLock()
	n, ok := c.secondary[key]
	c.mu.RUnlock()
	if !ok {
		return zero[T](), false
	}
	return n.read()
}

func (n *node[T]) read() (T, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.removed || !n.hasValue {
		return zero[T](), false
	}
	return n.value, true
}

// UpdateLocal performs the CAS-style swap described in spec.md §4.3: if no
// node exists for v's primary key, insert it; if one exists, install v iff
// version(v) > version(current); otherwise no-op. Returns the replaced value
// and true iff a replacement happened.
func (c *Cache[T]) UpdateLocal(v T) (T, bool) {
	key := c.keys.PrimaryKey(v)

	c.mu.Lock()
	n, ok := c.primary[key]
	if !ok {
		n = &node[T]{}
		c.primary[key] = n
	}
	c.mu.Unlock()

	n.mu.Lock()
	var replaced T
	var didReplace, wrote bool
	if !n.hasValue || v.Version() > n.value.Version() {
		if n.hasValue {
			replaced = n.value
			didReplace = true
		}
		n.value = v
		n.hasValue = true
		n.removed = false
		n.writtenAt = time.Now()
		wrote = true
	}
	n.mu.Unlock()

	if wrote {
		c.linkSecondary(v, n)
	}
	return replaced, didReplace
}

func (c *Cache[T]) linkSecondary(v T, n *node[T]) {
	if c.keys.SecondaryKey == nil {
		return
	}
	secKey, has := c.keys.SecondaryKey(v)
	if !has {
		return
	}
	c.mu.Lock()
	c.secondary[secKey] = n
	c.mu.Unlock()
}

// Set behaves like UpdateLocal, and on any replacement asynchronously writes
// the serialised value to the remote byte-bucket mirror under the value's
// primary key, with the cache's configured TTL. No key prefix is added.
func (c *Cache[T]) Set(ctx context.Context, v T, marshal func(T) ([]byte, error)) (T, bool) {
	replaced, didReplace := c.UpdateLocal(v)
	if didReplace && c.remote != nil && marshal != nil {
		key := c.keys.PrimaryKey(v)
		go func() {
			payload, err := marshal(v)
			if err != nil {
				return
			}
			_ = c.remote.Put(context.Background(), key, payload, c.ttl)
		}()
	}
	_ = ctx
	return replaced, didReplace
}

// RemovePrimary marks the node for key as removed. It remains visible to
// reads as absent but is retained for the grace period so late writers can
// detect the removal and skip.
func (c *Cache[T]) RemovePrimary(key string) {
	c.mu.RLock()
	n, ok := c.primary[key]
	c.mu.RUnlock()
	if !ok {
		return
	}
	n.mu.Lock()
	if !n.removed {
		n.removed = true
		n.removedAt = time.Now()
	}
	n.mu.Unlock()
}

// Pull iterates the remote bucket under the cache's key prefix in chunked
// scans and rehydrates the local map. This is the only path that reads from
// the remote store; cmd/collector does not call it.
func (c *Cache[T]) Pull(ctx context.Context, prefix string, unmarshal func([]byte) (T, error)) error {
	if c.remote == nil {
		return nil
	}
	return c.remote.Scan(ctx, prefix, func(_ string, payload []byte) error {
		v, err := unmarshal(payload)
		if err != nil {
			return nil // schema drift on a single cached value: skip, don't abort the pull
		}
		c.UpdateLocal(v)
		return nil
	})
}

// All returns a snapshot of every currently-live primary value. Used by
// callers that need to iterate the working set (e.g. "for every known
// server, tick its dependent collectors") rather than look up one key.
func (c *Cache[T]) All() []T {
	c.mu.RLock()
	nodes := make([]*node[T], 0, len(c.primary))
	for _, n := range c.primary {
		nodes = append(nodes, n)
	}
	c.mu.RUnlock()

	out := make([]T, 0, len(nodes))
	for _, n := range nodes {
		if v, ok := n.read(); ok {
			out = append(out, v)
		}
	}
	return out
}

func zero[T any]() T {
	var z T
	return z
}
