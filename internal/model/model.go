// Package model holds the normalised authoritative entities described in
// spec.md §3: Server, DispatchPost, Journey, JourneyEvent, VehicleSequence.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Region is the closed set of upstream server regions.
type Region string

const (
	RegionAsia    Region = "ASIA"
	RegionEurope  Region = "EUROPE"
	RegionUSNorth Region = "US_NORTH"
)

// Server is a live-sim dispatch server.
type Server struct {
	ID              uuid.UUID
	ForeignID       string
	Code            string
	Region          Region
	Scenery         string
	UTCOffsetHours  int
	SpokenLanguage  string
	Tags            []string
	Deleted         bool
	RegisteredSince time.Time
	UpdateTime      time.Time
}

// DispatchPost is an operator-controllable station on a server.
type DispatchPost struct {
	ID          uuid.UUID
	ForeignID   string
	ServerID    uuid.UUID
	PointID     uuid.UUID
	Latitude    float64
	Longitude   float64
	Difficulty  int
	ImageURLs   []string
	Deleted     bool
	UpdateTime  time.Time
}

// EventType is arrival or departure.
type EventType string

const (
	EventArrival   EventType = "ARRIVAL"
	EventDeparture EventType = "DEPARTURE"
)

// RealtimePrecision describes how confident a realtime time is.
type RealtimePrecision string

const (
	PrecisionSchedule  RealtimePrecision = "SCHEDULE"
	PrecisionPrediction RealtimePrecision = "PREDICTION"
	PrecisionReal      RealtimePrecision = "REAL"
)

// StopType is the passenger relevance of a stop.
type StopType string

const (
	StopNone         StopType = "NONE"
	StopNonPassenger StopType = "NON_PASSENGER"
	StopPassenger    StopType = "PASSENGER"
)

// TransportDescriptor is the embedded train descriptor carried by every event.
type TransportDescriptor struct {
	Category string
	Number   string
	Line     string
	Label    string
	Type     string
	MaxSpeed int
}

// JourneyEvent is one scheduled/realised arrival or departure.
type JourneyEvent struct {
	ID                uuid.UUID
	JourneyID         uuid.UUID
	EventIndex        int
	EventType         EventType
	PointID           uuid.UUID
	InPlayableBorder  bool
	ScheduledTime     time.Time
	RealtimeTime      *time.Time
	RealtimeTimeType  RealtimePrecision
	Transport         TransportDescriptor
	StopType          StopType
	ScheduledPlatform *string
	ScheduledTrack    *string
	RealtimePlatform  *string
	RealtimeTrack     *string
	Cancelled         bool
	Additional        bool
}

// Journey is one scheduled train run on one server.
type Journey struct {
	ID                    uuid.UUID
	ServerID              uuid.UUID
	ForeignRunID          string
	FirstSeenTime         *time.Time
	LastSeenTime          *time.Time
	Cancelled             bool
	ContinuationJourneyID *uuid.UUID
	UpdateTime            time.Time
	Events                []JourneyEvent
	Sequence              *VehicleSequence
}

// VehicleSequenceStatus is PREDICTION or REAL.
type VehicleSequenceStatus string

const (
	SequencePrediction VehicleSequenceStatus = "PREDICTION"
	SequenceReal       VehicleSequenceStatus = "REAL"
)

// RailcarRef is one railcar within a vehicle sequence, with its load and an
// optional named locomotive.
type RailcarRef struct {
	RailcarID   string
	Load        string
	Locomotive  *string
}

// VehicleSequence is the ordered railcar consist of a journey.
type VehicleSequence struct {
	ID                uuid.UUID
	JourneyID         uuid.UUID
	Status            VehicleSequenceStatus
	Railcars          []RailcarRef
	SequenceResolveKey string
	UpdateTime        time.Time
}

// SequenceResolveKey builds the stable resolve key:
// category‖number‖origin-point-id‖destination-point-id‖scheduled-departure.
func SequenceResolveKey(category, number, originPointID, destinationPointID string, scheduledDeparture time.Time) string {
	return category + "\x1f" + number + "\x1f" + originPointID + "\x1f" + destinationPointID + "\x1f" + scheduledDeparture.UTC().Format(time.RFC3339)
}
