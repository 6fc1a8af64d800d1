// Package dispatch implements the update dispatcher described in spec.md
// §4.7: an internal streaming surface (three server-streaming subscriptions)
// and a subject-addressed broker, both fed sparse update frames where field
// presence means "changed to this value" and a present-but-cleared wrapper
// means "changed to null" (spec.md §9's tristate design note).
//
// The frame types below are hand-declared protobuf messages using the
// legacy (struct-tag reflection) Message contract that google.golang.org/
// protobuf keeps for backward compatibility: each type implements only
// Reset/String/ProtoMessage and carries `protobuf:"..."` struct tags, the
// same wire-format contract the teacher's GTFS-RT bindings are generated
// against, without requiring a protoc codegen step in this repository.
package dispatch

// UpdateType is the closed set of frame mutation kinds.
type UpdateType int32

const (
	UpdateTypeAdd UpdateType = iota
	UpdateTypeRemove
	UpdateTypeUpdate
)

func (u UpdateType) String() string {
	switch u {
	case UpdateTypeAdd:
		return "ADD"
	case UpdateTypeRemove:
		return "REMOVE"
	case UpdateTypeUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// StringValue is a tristate string wrapper: a nil *StringValue means
// "unchanged"; a non-nil one with Cleared=true means "changed to null"; a
// non-nil one with Cleared=false carries the new value.
type StringValue struct {
	Cleared bool   `protobuf:"varint,1,opt,name=cleared,proto3" json:"cleared,omitempty"`
	Value   string `protobuf:"bytes,2,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *StringValue) Reset()         { *m = StringValue{} }
func (m *StringValue) String() string { return m.Value }
func (*StringValue) ProtoMessage()    {}

// Int32Value is the signed-integer analogue of StringValue.
type Int32Value struct {
	Cleared bool  `protobuf:"varint,1,opt,name=cleared,proto3" json:"cleared,omitempty"`
	Value   int32 `protobuf:"varint,2,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *Int32Value) Reset()         { *m = Int32Value{} }
func (m *Int32Value) String() string { return "" }
func (*Int32Value) ProtoMessage()    {}

// UInt32Value is the unsigned-integer analogue of StringValue.
type UInt32Value struct {
	Cleared bool   `protobuf:"varint,1,opt,name=cleared,proto3" json:"cleared,omitempty"`
	Value   uint32 `protobuf:"varint,2,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *UInt32Value) Reset()         { *m = UInt32Value{} }
func (m *UInt32Value) String() string { return "" }
func (*UInt32Value) ProtoMessage()    {}

// BoolValue is the boolean analogue of StringValue.
type BoolValue struct {
	Cleared bool `protobuf:"varint,1,opt,name=cleared,proto3" json:"cleared,omitempty"`
	Value   bool `protobuf:"varint,2,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *BoolValue) Reset()         { *m = BoolValue{} }
func (m *BoolValue) String() string { return "" }
func (*BoolValue) ProtoMessage()    {}

// PositionUpdate carries a changed lat/lon pair.
type PositionUpdate struct {
	Lat float64 `protobuf:"fixed64,1,opt,name=lat,proto3" json:"lat,omitempty"`
	Lon float64 `protobuf:"fixed64,2,opt,name=lon,proto3" json:"lon,omitempty"`
}

func (m *PositionUpdate) Reset()         { *m = PositionUpdate{} }
func (m *PositionUpdate) String() string { return "" }
func (*PositionUpdate) ProtoMessage()    {}

// NextSignalUpdate carries the upcoming signal's name, distance in metres
// and optional speed limit. An absent wrapper (nil pointer on the parent
// frame) means unchanged; a wrapper with Cleared=true means the signal is
// out of range (>5km per spec.md §4.5).
type NextSignalUpdate struct {
	Cleared        bool         `protobuf:"varint,1,opt,name=cleared,proto3" json:"cleared,omitempty"`
	Name           string       `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	DistanceMeters float64      `protobuf:"fixed64,3,opt,name=distance_meters,proto3" json:"distance_meters,omitempty"`
	SpeedLimit     *UInt32Value `protobuf:"bytes,4,opt,name=speed_limit,proto3" json:"speed_limit,omitempty"`
}

func (m *NextSignalUpdate) Reset()         { *m = NextSignalUpdate{} }
func (m *NextSignalUpdate) String() string { return m.Name }
func (*NextSignalUpdate) ProtoMessage()    {}

// JourneyUpdateFrame is the sparse delta published for a journey mutation.
type JourneyUpdateFrame struct {
	JourneyID    string            `protobuf:"bytes,1,opt,name=journey_id,proto3" json:"journey_id,omitempty"`
	ServerID     string            `protobuf:"bytes,2,opt,name=server_id,proto3" json:"server_id,omitempty"`
	UpdateType   UpdateType        `protobuf:"varint,3,opt,name=update_type,proto3,enum=sitevents.UpdateType" json:"update_type,omitempty"`
	DriverID     *StringValue      `protobuf:"bytes,4,opt,name=driver_id,proto3" json:"driver_id,omitempty"`
	NextSignal   *NextSignalUpdate `protobuf:"bytes,5,opt,name=next_signal,proto3" json:"next_signal,omitempty"`
	Speed        *UInt32Value      `protobuf:"bytes,6,opt,name=speed,proto3" json:"speed,omitempty"`
	Position     *PositionUpdate   `protobuf:"bytes,7,opt,name=position,proto3" json:"position,omitempty"`
	EventUpdated bool              `protobuf:"varint,8,opt,name=event_updated,proto3" json:"event_updated,omitempty"`
}

func (m *JourneyUpdateFrame) Reset()         { *m = JourneyUpdateFrame{} }
func (m *JourneyUpdateFrame) String() string { return m.JourneyID }
func (*JourneyUpdateFrame) ProtoMessage()    {}

// ServerUpdateFrame is the sparse delta published for a server mutation.
type ServerUpdateFrame struct {
	ServerID       string       `protobuf:"bytes,1,opt,name=server_id,proto3" json:"server_id,omitempty"`
	UpdateType     UpdateType   `protobuf:"varint,2,opt,name=update_type,proto3,enum=sitevents.UpdateType" json:"update_type,omitempty"`
	Online         *BoolValue   `protobuf:"bytes,3,opt,name=online,proto3" json:"online,omitempty"`
	ZoneOffset     *StringValue `protobuf:"bytes,4,opt,name=zone_offset,proto3" json:"zone_offset,omitempty"`
	UTCOffsetHours *Int32Value  `protobuf:"bytes,5,opt,name=utc_offset_hours,proto3" json:"utc_offset_hours,omitempty"`
	ServerScenery  *StringValue `protobuf:"bytes,6,opt,name=server_scenery,proto3" json:"server_scenery,omitempty"`
}

func (m *ServerUpdateFrame) Reset()         { *m = ServerUpdateFrame{} }
func (m *ServerUpdateFrame) String() string { return m.ServerID }
func (*ServerUpdateFrame) ProtoMessage()    {}

// DispatchPostUpdateFrame is the sparse delta published for a dispatch-post
// mutation. DispatcherIDs, when present, is always the complete current set.
type DispatchPostUpdateFrame struct {
	PostID        string     `protobuf:"bytes,1,opt,name=post_id,proto3" json:"post_id,omitempty"`
	ServerID      string     `protobuf:"bytes,2,opt,name=server_id,proto3" json:"server_id,omitempty"`
	UpdateType    UpdateType `protobuf:"varint,3,opt,name=update_type,proto3,enum=sitevents.UpdateType" json:"update_type,omitempty"`
	DispatcherIDs []string   `protobuf:"bytes,4,rep,name=dispatcher_ids,proto3" json:"dispatcher_ids,omitempty"`
}

func (m *DispatchPostUpdateFrame) Reset()         { *m = DispatchPostUpdateFrame{} }
func (m *DispatchPostUpdateFrame) String() string { return m.PostID }
func (*DispatchPostUpdateFrame) ProtoMessage()    {}
