package dispatch

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus[*ServerUpdateFrame](zerolog.Nop())

	chA, unsubA := bus.Subscribe(4)
	defer unsubA()
	chB, unsubB := bus.Subscribe(4)
	defer unsubB()

	frame := &ServerUpdateFrame{ServerID: "server-1"}
	bus.Publish(frame)

	select {
	case got := <-chA:
		assert.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("subscriber A never received frame")
	}
	select {
	case got := <-chB:
		assert.Equal(t, frame, got)
	case <-time.After(time.Second):
		t.Fatal("subscriber B never received frame")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus[*ServerUpdateFrame](zerolog.Nop())

	ch, unsubscribe := bus.Subscribe(1)
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBusPublishDropsOnFullBuffer(t *testing.T) {
	bus := NewBus[*ServerUpdateFrame](zerolog.Nop())

	ch, unsubscribe := bus.Subscribe(1)
	defer unsubscribe()

	bus.Publish(&ServerUpdateFrame{ServerID: "first"})
	bus.Publish(&ServerUpdateFrame{ServerID: "second"}) // buffer full, dropped

	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, "first", got.ServerID)
}
