package dispatch

import (
	"github.com/trainsim/sit-collector/internal/dirty"
)

// BuildJourneyFrame assembles a sparse JourneyUpdateFrame from the set of
// dirty-field changes a tick produced (see internal/dirty), so only the
// fields that actually changed carry a non-nil wrapper on the wire (S7
// update-frame sparseness).
func BuildJourneyFrame(journeyID, serverID string, updateType UpdateType, changes []dirty.Change) *JourneyUpdateFrame {
	f := &JourneyUpdateFrame{JourneyID: journeyID, ServerID: serverID, UpdateType: updateType}
	for _, c := range changes {
		switch c.Name {
		case "driver_id":
			f.DriverID = stringValueFromNullable(c.New)
		case "speed_kmh":
			if v, ok := c.New.(int); ok {
				f.Speed = &UInt32Value{Value: uint32(v)}
			}
		case "lat", "lon":
			f.Position = mergePosition(f.Position, c)
		case "next_signal_name":
			if sv := stringValueFromNullable(c.New); sv != nil {
				if f.NextSignal == nil {
					f.NextSignal = &NextSignalUpdate{}
				}
				f.NextSignal.Cleared = sv.Cleared
				f.NextSignal.Name = sv.Value
			}
		case "next_signal_distance_m":
			if v, ok := c.New.(float64); ok {
				if f.NextSignal == nil {
					f.NextSignal = &NextSignalUpdate{}
				}
				f.NextSignal.DistanceMeters = v
			}
		}
	}
	return f
}

// mergePosition folds successive lat/lon dirty-field changes (reported as
// two separate Field[float64] entries) into the one PositionUpdate the wire
// frame carries.
func mergePosition(existing *PositionUpdate, c dirty.Change) *PositionUpdate {
	p := existing
	if p == nil {
		p = &PositionUpdate{}
	}
	v, ok := c.New.(float64)
	if !ok {
		return p
	}
	if c.Name == "lat" {
		p.Lat = v
	} else {
		p.Lon = v
	}
	return p
}

// stringValueFromNullable converts a NullableField[string] change's New
// value (a *string, nil meaning "explicitly cleared") into the wire
// tristate wrapper.
func stringValueFromNullable(newValue any) *StringValue {
	ptr, ok := newValue.(*string)
	if !ok {
		return nil
	}
	if ptr == nil {
		return &StringValue{Cleared: true}
	}
	return &StringValue{Value: *ptr}
}

// BuildServerFrame assembles a sparse ServerUpdateFrame.
func BuildServerFrame(serverID string, updateType UpdateType, changes []dirty.Change) *ServerUpdateFrame {
	f := &ServerUpdateFrame{ServerID: serverID, UpdateType: updateType}
	for _, c := range changes {
		switch c.Name {
		case "online":
			if v, ok := c.New.(bool); ok {
				f.Online = &BoolValue{Value: v}
			}
		case "zone_offset":
			f.ZoneOffset = stringValueFromNullable(c.New)
		case "utc_offset_hours":
			if v, ok := c.New.(int); ok {
				f.UTCOffsetHours = &Int32Value{Value: int32(v)}
			}
		case "server_scenery":
			f.ServerScenery = stringValueFromNullable(c.New)
		}
	}
	return f
}

// BuildDispatchPostFrame assembles a sparse DispatchPostUpdateFrame. The
// dispatcher id set, when reported dirty, is always published in full.
func BuildDispatchPostFrame(postID, serverID string, updateType UpdateType, dispatcherIDs []string, dispatcherIDsDirty bool) *DispatchPostUpdateFrame {
	f := &DispatchPostUpdateFrame{PostID: postID, ServerID: serverID, UpdateType: updateType}
	if dispatcherIDsDirty {
		f.DispatcherIDs = dispatcherIDs
	}
	return f
}
