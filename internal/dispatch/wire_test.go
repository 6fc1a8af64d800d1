package dispatch

import (
	"testing"

	"github.com/golang/protobuf/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJourneyFrameRoundTrips(t *testing.T) {
	frame := &JourneyUpdateFrame{
		JourneyID:  "journey-1",
		ServerID:   "server-1",
		UpdateType: UpdateTypeUpdate,
		DriverID:   &StringValue{Value: "driver-7"},
		Speed:      &UInt32Value{Value: 120},
		Position:   &PositionUpdate{Lat: 41.39, Lon: 2.16},
	}

	payload, err := Marshal(frame)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)

	var decoded JourneyUpdateFrame
	require.NoError(t, proto.Unmarshal(payload, &decoded))
	assert.Equal(t, frame.JourneyID, decoded.JourneyID)
	assert.Equal(t, frame.ServerID, decoded.ServerID)
	assert.Equal(t, frame.UpdateType, decoded.UpdateType)
	require.NotNil(t, decoded.DriverID)
	assert.Equal(t, "driver-7", decoded.DriverID.Value)
	require.NotNil(t, decoded.Speed)
	assert.Equal(t, uint32(120), decoded.Speed.Value)
}

func TestMarshalClearedWrapperSurvivesEncoding(t *testing.T) {
	frame := &JourneyUpdateFrame{
		JourneyID: "journey-2",
		DriverID:  &StringValue{Cleared: true},
	}

	payload, err := Marshal(frame)
	require.NoError(t, err)

	var decoded JourneyUpdateFrame
	require.NoError(t, proto.Unmarshal(payload, &decoded))
	require.NotNil(t, decoded.DriverID)
	assert.True(t, decoded.DriverID.Cleared)
	assert.Empty(t, decoded.DriverID.Value)
}

func TestMarshalAbsentWrapperStaysNil(t *testing.T) {
	frame := &JourneyUpdateFrame{JourneyID: "journey-3"}

	payload, err := Marshal(frame)
	require.NoError(t, err)

	var decoded JourneyUpdateFrame
	require.NoError(t, proto.Unmarshal(payload, &decoded))
	assert.Nil(t, decoded.DriverID)
	assert.Nil(t, decoded.Speed)
	assert.Nil(t, decoded.Position)
}
