package journey

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/trainsim/sit-collector/internal/model"
)

// checksumEvent mirrors model.JourneyEvent with omitempty tags in a fixed
// field order, so two structurally identical events always serialise to the
// same bytes regardless of pointer identity.
type checksumEvent struct {
	Index             int     `json:"i"`
	Type              string  `json:"t"`
	PointID           string  `json:"p"`
	Scheduled         string  `json:"sch"`
	Realtime          string  `json:"rt,omitempty"`
	RealtimeType      string  `json:"rtt,omitempty"`
	Category          string  `json:"cat"`
	Number            string  `json:"num"`
	StopType          string  `json:"stop"`
	ScheduledPlatform string  `json:"sp,omitempty"`
	ScheduledTrack    string  `json:"st,omitempty"`
	RealtimePlatform  string  `json:"rp,omitempty"`
	RealtimeTrack     string  `json:"rtr,omitempty"`
	Cancelled         bool    `json:"c,omitempty"`
	Additional        bool    `json:"add,omitempty"`
}

type checksumJourney struct {
	ServerID      string          `json:"server"`
	ForeignRunID  string          `json:"run"`
	Cancelled     bool            `json:"cancelled,omitempty"`
	Continuation  string          `json:"continuation,omitempty"`
	Events        []checksumEvent `json:"events"`
}

// Checksum computes the canonical-JSON digest described in spec.md §4.5:
// fields in a fixed order, null-valued keys suppressed via omitempty.
func Checksum(j model.Journey) string {
	view := checksumJourney{
		ServerID:     j.ServerID.String(),
		ForeignRunID: j.ForeignRunID,
		Cancelled:    j.Cancelled,
	}
	if j.ContinuationJourneyID != nil {
		view.Continuation = j.ContinuationJourneyID.String()
	}
	for _, e := range j.Events {
		ce := checksumEvent{
			Index:     e.EventIndex,
			Type:      string(e.EventType),
			PointID:   e.PointID.String(),
			Scheduled: e.ScheduledTime.UTC().Format(time.RFC3339),
			Category:  e.Transport.Category,
			Number:    e.Transport.Number,
			StopType:  string(e.StopType),
			Cancelled: e.Cancelled,
			Additional: e.Additional,
		}
		if e.RealtimeTime != nil {
			ce.Realtime = e.RealtimeTime.UTC().Format(time.RFC3339)
			ce.RealtimeType = string(e.RealtimeTimeType)
		}
		if e.ScheduledPlatform != nil {
			ce.ScheduledPlatform = *e.ScheduledPlatform
		}
		if e.ScheduledTrack != nil {
			ce.ScheduledTrack = *e.ScheduledTrack
		}
		if e.RealtimePlatform != nil {
			ce.RealtimePlatform = *e.RealtimePlatform
		}
		if e.RealtimeTrack != nil {
			ce.RealtimeTrack = *e.RealtimeTrack
		}
		view.Events = append(view.Events, ce)
	}

	b, err := json.Marshal(view)
	if err != nil {
		// Marshalling a plain value struct cannot fail; surface a distinct
		// digest rather than panicking if it ever does.
		return "checksum-error"
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
