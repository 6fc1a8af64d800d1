package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trainsim/sit-collector/internal/dirty"
)

func strPtr(s string) *string { return &s }

func TestBuildJourneyFrameOnlyCarriesChangedFields(t *testing.T) {
	changes := []dirty.Change{
		{Name: "speed_kmh", New: 90},
	}

	frame := BuildJourneyFrame("journey-1", "server-1", UpdateTypeUpdate, changes)

	assert.Nil(t, frame.DriverID, "untouched field must stay absent")
	assert.Nil(t, frame.Position, "untouched field must stay absent")
	assert.Nil(t, frame.NextSignal, "untouched field must stay absent")
	if assert.NotNil(t, frame.Speed) {
		assert.Equal(t, uint32(90), frame.Speed.Value)
	}
}

func TestBuildJourneyFrameClearedDriverIsTristateCleared(t *testing.T) {
	changes := []dirty.Change{
		{Name: "driver_id", New: (*string)(nil)},
	}

	frame := BuildJourneyFrame("journey-1", "server-1", UpdateTypeUpdate, changes)

	if assert.NotNil(t, frame.DriverID) {
		assert.True(t, frame.DriverID.Cleared)
		assert.Empty(t, frame.DriverID.Value)
	}
}

func TestBuildJourneyFrameSetDriverCarriesValue(t *testing.T) {
	changes := []dirty.Change{
		{Name: "driver_id", New: strPtr("driver-9")},
	}

	frame := BuildJourneyFrame("journey-1", "server-1", UpdateTypeUpdate, changes)

	if assert.NotNil(t, frame.DriverID) {
		assert.False(t, frame.DriverID.Cleared)
		assert.Equal(t, "driver-9", frame.DriverID.Value)
	}
}

func TestBuildJourneyFrameMergesLatLonIntoOnePosition(t *testing.T) {
	changes := []dirty.Change{
		{Name: "lat", New: 41.39},
		{Name: "lon", New: 2.16},
	}

	frame := BuildJourneyFrame("journey-1", "server-1", UpdateTypeUpdate, changes)

	if assert.NotNil(t, frame.Position) {
		assert.Equal(t, 41.39, frame.Position.Lat)
		assert.Equal(t, 2.16, frame.Position.Lon)
	}
}

func TestBuildDispatchPostFrameOmitsDispatcherIDsWhenClean(t *testing.T) {
	frame := BuildDispatchPostFrame("post-1", "server-1", UpdateTypeUpdate, []string{"a", "b"}, false)
	assert.Nil(t, frame.DispatcherIDs)
}

func TestBuildDispatchPostFrameIncludesFullSetWhenDirty(t *testing.T) {
	frame := BuildDispatchPostFrame("post-1", "server-1", UpdateTypeUpdate, []string{"a", "b"}, true)
	assert.Equal(t, []string{"a", "b"}, frame.DispatcherIDs)
}

func TestBuildServerFrameOnlyCarriesChangedFields(t *testing.T) {
	changes := []dirty.Change{
		{Name: "online", New: true},
	}

	frame := BuildServerFrame("server-1", UpdateTypeUpdate, changes)

	if assert.NotNil(t, frame.Online) {
		assert.True(t, frame.Online.Value)
	}
	assert.Nil(t, frame.ZoneOffset)
	assert.Nil(t, frame.UTCOffsetHours)
	assert.Nil(t, frame.ServerScenery)
}
