// Package refdata loads the static reference bundles (points, signals,
// railcars) once at start-up into immutable, thread-safe indexes — the
// in-scope slice of the system's static reference data (the rest, per
// spec.md §1, is an external collaborator).
package refdata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Point is a named location with a geographic polygon. It carries no
// platform or track structure.
type Point struct {
	ID          uuid.UUID
	ForeignID   string
	Name        string
	Lat         float64
	Lon         float64
	Border      Polygon
}

// Points is the immutable, thread-safe index of all static points. It is
// built once by Load and never mutated afterwards, so reads need no locking.
type Points struct {
	byID        map[uuid.UUID]Point
	byForeignID map[string]Point
	byName      map[string]Point
	all         []Point
}

type pointRecord struct {
	ID        string      `json:"id"`
	ForeignID string      `json:"foreign_id"`
	Name      string      `json:"name"`
	Lat       float64     `json:"lat"`
	Lon       float64     `json:"lon"`
	Border    [][2]float64 `json:"border"`
}

// LoadPoints parses the points bundle and builds the read-only indexes.
// Violation of uniqueness (duplicate id/foreign id/name) is a start-up error.
func LoadPoints(path string) (*Points, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("refdata: reading points bundle: %w", err)
	}

	var records []pointRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("refdata: parsing points bundle: %w", err)
	}

	idx := &Points{
		byID:        make(map[uuid.UUID]Point, len(records)),
		byForeignID: make(map[string]Point, len(records)),
		byName:      make(map[string]Point, len(records)),
		all:         make([]Point, 0, len(records)),
	}

	for _, rec := range records {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("refdata: point %q has invalid id: %w", rec.ForeignID, err)
		}
		ring := make([]LatLon, 0, len(rec.Border))
		for _, c := range rec.Border {
			ring = append(ring, LatLon{Lat: c[1], Lon: c[0]})
		}
		p := Point{
			ID:        id,
			ForeignID: rec.ForeignID,
			Name:      rec.Name,
			Lat:       rec.Lat,
			Lon:       rec.Lon,
			Border:    NewPolygon(ring),
		}

		if _, dup := idx.byID[p.ID]; dup {
			return nil, fmt.Errorf("refdata: duplicate point id %s", p.ID)
		}
		if _, dup := idx.byForeignID[p.ForeignID]; dup {
			return nil, fmt.Errorf("refdata: duplicate point foreign id %s", p.ForeignID)
		}
		if _, dup := idx.byName[p.Name]; dup {
			return nil, fmt.Errorf("refdata: duplicate point name %s", p.Name)
		}

		idx.byID[p.ID] = p
		idx.byForeignID[p.ForeignID] = p
		idx.byName[p.Name] = p
		idx.all = append(idx.all, p)
	}

	return idx, nil
}

// ByID looks up a point by its internal UUID.
func (p *Points) ByID(id uuid.UUID) (Point, bool) {
	pt, ok := p.byID[id]
	return pt, ok
}

// ByForeignID looks up a point by its upstream foreign id.
func (p *Points) ByForeignID(foreignID string) (Point, bool) {
	pt, ok := p.byForeignID[foreignID]
	return pt, ok
}

// ByName looks up a point by its display name.
func (p *Points) ByName(name string) (Point, bool) {
	pt, ok := p.byName[name]
	return pt, ok
}

// ContainingPolygon returns the first point whose playable border contains
// the given coordinate.
func (p *Points) ContainingPolygon(loc LatLon) (Point, bool) {
	for _, pt := range p.all {
		if pt.Border.Contains(loc) {
			return pt, true
		}
	}
	return Point{}, false
}
