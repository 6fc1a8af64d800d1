package dispatch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Bus is the internal fan-out surface behind the three server-streaming
// subscriptions (journeys/servers/dispatch-posts per spec.md §4.7): each
// Publish delivers to every currently-registered Subscribe channel without
// blocking on a slow reader — a full channel drops the frame for that
// subscriber, matching the "messages are dropped; reconnects in the
// background" broker-outage policy. The subscriber-set-under-mutex shape
// mirrors the teacher's etag-map guarding in internal/realtime/rodalies/
// client.go, generalized from a map of strings to a map of channels.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs map[int]chan T
	next int
	log  zerolog.Logger
}

// NewBus builds an empty fan-out bus for frame type T.
func NewBus[T any](log zerolog.Logger) *Bus[T] {
	return &Bus[T]{subs: make(map[int]chan T), log: log}
}

// Subscribe registers a new receiver with the given buffer depth and returns
// the channel plus an unsubscribe function the caller must call when its
// stream ends.
func (b *Bus[T]) Subscribe(buffer int) (<-chan T, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan T, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
}

// Publish delivers frame to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking the publisher.
func (b *Bus[T]) Publish(frame T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- frame:
		default:
			b.log.Warn().Int("subscriber", id).Msg("dropping frame: subscriber buffer full")
		}
	}
}

// Run is a no-op placeholder kept symmetrical with the other components'
// lifecycle methods; Bus has no background goroutine of its own.
func (b *Bus[T]) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
