package refdata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Signal is a single signal at a point, optionally mapped to a
// platform/track pair (used by C5's ForSignalUpdate handler).
type Signal struct {
	PointID  uuid.UUID
	SignalID string
	Lat      float64
	Lon      float64
	Platform *string
	Track    *string
}

type signalKey struct {
	pointID  uuid.UUID
	signalID string
}

// Signals is the immutable, thread-safe (point-id, signal-id) index.
type Signals struct {
	byKey map[signalKey]Signal
}

type signalRecord struct {
	PointID  string  `json:"point_id"`
	SignalID string  `json:"signal_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Platform *string `json:"platform"`
	Track    *string `json:"track"`
}

// LoadSignals parses the signals bundle into a read-only (point, signal)
// index. Duplicate (point_id, signal_id) pairs are a start-up error.
func LoadSignals(path string) (*Signals, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("refdata: reading signals bundle: %w", err)
	}

	var records []signalRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("refdata: parsing signals bundle: %w", err)
	}

	idx := &Signals{byKey: make(map[signalKey]Signal, len(records))}
	for _, rec := range records {
		pointID, err := uuid.Parse(rec.PointID)
		if err != nil {
			return nil, fmt.Errorf("refdata: signal %q has invalid point id: %w", rec.SignalID, err)
		}
		key := signalKey{pointID: pointID, signalID: rec.SignalID}
		if _, dup := idx.byKey[key]; dup {
			return nil, fmt.Errorf("refdata: duplicate signal %s at point %s", rec.SignalID, rec.PointID)
		}
		idx.byKey[key] = Signal{
			PointID:  pointID,
			SignalID: rec.SignalID,
			Lat:      rec.Lat,
			Lon:      rec.Lon,
			Platform: rec.Platform,
			Track:    rec.Track,
		}
	}
	return idx, nil
}

// ByPointAndSignal resolves a signal at a point to its platform/track pair.
func (s *Signals) ByPointAndSignal(pointID uuid.UUID, signalID string) (Signal, bool) {
	sig, ok := s.byKey[signalKey{pointID: pointID, signalID: signalID}]
	return sig, ok
}

// Railcar is a static railcar/rolling-stock definition.
type Railcar struct {
	ID     string
	APIID  string
	Name   string
	Length float64
}

// Railcars is the immutable, thread-safe railcar index (by internal id and
// by the upstream API id).
type Railcars struct {
	byID    map[string]Railcar
	byAPIID map[string]Railcar
}

type railcarRecord struct {
	ID     string  `json:"id"`
	APIID  string  `json:"api_id"`
	Name   string  `json:"name"`
	Length float64 `json:"length"`
}

// LoadRailcars parses the railcars bundle into read-only indexes.
func LoadRailcars(path string) (*Railcars, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("refdata: reading railcars bundle: %w", err)
	}

	var records []railcarRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("refdata: parsing railcars bundle: %w", err)
	}

	idx := &Railcars{
		byID:    make(map[string]Railcar, len(records)),
		byAPIID: make(map[string]Railcar, len(records)),
	}
	for _, rec := range records {
		rc := Railcar{ID: rec.ID, APIID: rec.APIID, Name: rec.Name, Length: rec.Length}
		if _, dup := idx.byID[rc.ID]; dup {
			return nil, fmt.Errorf("refdata: duplicate railcar id %s", rc.ID)
		}
		idx.byID[rc.ID] = rc
		idx.byAPIID[rc.APIID] = rc
	}
	return idx, nil
}

// ByID looks up a railcar by its internal id.
func (r *Railcars) ByID(id string) (Railcar, bool) {
	rc, ok := r.byID[id]
	return rc, ok
}

// ByAPIID looks up a railcar by its upstream API id.
func (r *Railcars) ByAPIID(apiID string) (Railcar, bool) {
	rc, ok := r.byAPIID[apiID]
	return rc, ok
}
