package journey

import (
	"sync"

	"github.com/trainsim/sit-collector/internal/dirty"
	"github.com/trainsim/sit-collector/internal/model"
)

// Record is the reconciler's working copy of one run: the authoritative
// Journey plus state-machine bookkeeping and the dirty-field tracker for the
// live overlay (driver, speed, position, next signal) that the dispatcher
// turns into a JourneyUpdateFrame.
type Record struct {
	mu sync.Mutex

	Journey           model.Journey
	State             State
	ConsecutiveMisses int
	LastReachedIndex  int
	Checksum          string
	version           int64

	Fields         *dirty.FieldGroup
	DriverID       *dirty.NullableField[string]
	SpeedKmh       *dirty.Field[int]
	Lat            *dirty.Field[float64]
	Lon            *dirty.Field[float64]
	NextSignalName *dirty.NullableField[string]
	NextSignalDist *dirty.Field[float64]
}

// NewRecord seeds a fresh record in state Unseen around j.
func NewRecord(j model.Journey) *Record {
	fields := dirty.NewFieldGroup()
	return &Record{
		Journey:        j,
		State:          StateUnseen,
		LastReachedIndex: -1,
		Fields:         fields,
		DriverID:       dirty.NewNullableField[string](fields, "driver_id", nil),
		SpeedKmh:       dirty.NewField(fields, "speed_kmh", 0),
		Lat:            dirty.NewField(fields, "lat", 0.0),
		Lon:            dirty.NewField(fields, "lon", 0.0),
		NextSignalName: dirty.NewNullableField[string](fields, "next_signal_name", nil),
		NextSignalDist: dirty.NewField(fields, "next_signal_distance_m", 0.0),
	}
}

// Version implements cache.Versioned: every accepted mutation bumps the
// counter, so the cache's CAS semantics reject stale concurrent writers.
func (r *Record) Version() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// Touch bumps the version after the reconciler mutates the record in place.
func (r *Record) Touch() {
	r.mu.Lock()
	r.version++
	r.mu.Unlock()
}

// AllPlayableCancelled reports property 6: the journey is cancelled iff
// every playable event is cancelled.
func (r *Record) AllPlayableCancelled() bool {
	any := false
	for _, e := range r.Journey.Events {
		if !e.InPlayableBorder {
			continue
		}
		any = true
		if !e.Cancelled {
			return false
		}
	}
	return any
}
