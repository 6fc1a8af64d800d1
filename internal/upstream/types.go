package upstream

import "time"

// ServerDTO is the upstream JSON shape for a server entry.
type ServerDTO struct {
	ID             string   `json:"id"`
	Code           string   `json:"code"`
	Region         string   `json:"region"`
	Scenery        string   `json:"scenery"`
	IsOnline       bool     `json:"is_online"`
	SpokenLanguage string   `json:"spoken_language"`
	Tags           []string `json:"tags"`
}

// TimeOffsetDTO carries a server's UTC offset.
type TimeOffsetDTO struct {
	ZoneOffset     string `json:"zone_offset"`
	UTCOffsetHours int    `json:"utc_offset_hours"`
}

// ActiveTrainDTO is one live run entry from the active-trains listing.
type ActiveTrainDTO struct {
	RunID      string  `json:"run_id"`
	TrainType  string  `json:"train_type"`
	TrainNumber string `json:"train_number"`
	Line        string `json:"line"`
	Label       string `json:"label"`
	MaxSpeed    int    `json:"max_speed"`
	DriverID    *string `json:"driver_id"`
}

// TrainPositionDTO is one live position entry.
type TrainPositionDTO struct {
	RunID           string   `json:"run_id"`
	PointForeignID  string   `json:"point_id"`
	PrevPointForeignID *string `json:"prev_point_id"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
	SpeedKmh        float64  `json:"speed_kmh"`
	NextSignalID    *string  `json:"next_signal_id"`
	NextSignalDistanceMeters *float64 `json:"next_signal_distance_m"`
}

// VehicleConsistDTO is one run's reported railcar consist.
type VehicleConsistDTO struct {
	RunID        string   `json:"run_id"`
	RailcarIDs   []string `json:"railcar_ids"`
	IsObserved   bool     `json:"is_observed"` // false: a predicted consist carried forward from a similar scheduled run
}

// DispatchPostDTO is one dispatch post entry.
type DispatchPostDTO struct {
	ID            string   `json:"id"`
	PointName     string   `json:"point_name"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Difficulty    int      `json:"difficulty_level"`
	ImageURLs     []string `json:"image_urls"`
	DispatcherIDs []string `json:"dispatcher_ids"`
}

// TimetableDTO is the full timetable response for a server.
type TimetableDTO struct {
	Runs []TimetableRunDTO `json:"runs"`
}

// TimetableRunDTO is one scheduled run's event list.
type TimetableRunDTO struct {
	RunID        string               `json:"run_id"`
	ContinuesAs  *string              `json:"continues_as_run_number"`
	Events       []TimetableEventDTO  `json:"events"`
}

// TimetableEventDTO is one scheduled event within a run's timetable.
type TimetableEventDTO struct {
	Index             int        `json:"index"`
	Type              string     `json:"type"` // "ARRIVAL" | "DEPARTURE"
	PointForeignID    string     `json:"point_id"`
	ScheduledTime     time.Time  `json:"scheduled_time"`
	TrainType         string     `json:"train_type"`
	TrainNumber       string     `json:"train_number"`
	Line              string     `json:"line"`
	Label             string     `json:"label"`
	MaxSpeed          int        `json:"max_speed"`
	StopType          string     `json:"stop_type"`
	ScheduledPlatform *string    `json:"scheduled_platform"`
	ScheduledTrack    *string    `json:"scheduled_track"`
}

// PolylineDTO is a resolved routing polyline.
type PolylineDTO struct {
	Points [][2]float64 `json:"points"`
}

// ProfileDTO is a resolved user profile.
type ProfileDTO struct {
	PlatformUserID string `json:"platform_user_id"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url"`
}
