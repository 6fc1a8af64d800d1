package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjectWithObjectID(t *testing.T) {
	got := Subject(KindJourneyUpdate, "server-1", "journey-9")
	assert.Equal(t, "sit-events.journey-updates.v1.server-1.journey-9", got)
}

func TestSubjectWithoutObjectID(t *testing.T) {
	got := Subject(KindServerUpdate, "server-1", "")
	assert.Equal(t, "sit-events.server-updates.v1.server-1", got)
}

func TestNilBrokerPublishIsNoOp(t *testing.T) {
	var b *Broker
	assert.NotPanics(t, func() {
		b.Publish(KindServerUpdate, "server-1", "", []byte("payload"))
	})
}
