package collector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trainsim/sit-collector/internal/ids"
	"github.com/trainsim/sit-collector/internal/journey"
	"github.com/trainsim/sit-collector/internal/model"
	"github.com/trainsim/sit-collector/internal/refdata"
	"github.com/trainsim/sit-collector/internal/upstream"
)

// TimetableCollector seeds the journey reconciler's Unseen state from the
// scheduled timetable, and resolves continuation chaining (spec.md §4.5)
// once both endpoints of a continues-as pair are known.
type TimetableCollector struct {
	client     *upstream.Client
	reconciler *journey.Reconciler
	points     *refdata.Points
	log        zerolog.Logger
}

// NewTimetableCollector builds a timetable collector.
func NewTimetableCollector(client *upstream.Client, reconciler *journey.Reconciler, points *refdata.Points, log zerolog.Logger) *TimetableCollector {
	return &TimetableCollector{client: client, reconciler: reconciler, points: points, log: log}
}

// TickServer fetches and seeds the timetable for one server, then attempts
// continuation linking across the runs it just saw.
func (c *TimetableCollector) TickServer(ctx context.Context, serverID uuid.UUID, serverForeignID, serverCode string) error {
	tt, err := c.client.FetchTimetable(ctx, serverCode)
	if err != nil && err != upstream.ErrNotModified {
		return fmt.Errorf("collector: fetching timetable for %s: %w", serverCode, err)
	}

	continuesAs := make(map[string]string) // run id -> declared continuation run number
	for _, run := range tt.Runs {
		if err := c.seedOne(serverID, serverForeignID, run); err != nil {
			c.log.Error().Err(err).Str("run", run.RunID).Msg("timetable seeding failed, skipping object")
			continue
		}
		if run.ContinuesAs != nil {
			continuesAs[run.RunID] = *run.ContinuesAs
		}
	}

	for runID, continuationNumber := range continuesAs {
		parent, ok := c.reconciler.Find(runID)
		if !ok {
			continue
		}
		child, ok := c.reconciler.Find(continuationNumber)
		if !ok {
			continue
		}
		c.reconciler.TryLinkContinuation(parent, child)
	}
	return nil
}

func (c *TimetableCollector) seedOne(serverID uuid.UUID, serverForeignID string, run upstream.TimetableRunDTO) error {
	if _, found := c.reconciler.Find(run.RunID); found {
		return nil // already active/observed: the timetable never overwrites live state
	}

	events := make([]model.JourneyEvent, 0, len(run.Events))
	journeyID := ids.JourneyID(serverForeignID, run.RunID)
	for _, ev := range run.Events {
		point, ok := c.points.ByForeignID(ev.PointForeignID)
		if !ok {
			continue // reference miss: drop this event, reconciliation proceeds with the rest
		}
		categoryStr := "UNKNOWN" // schema drift default per spec.md §9; overwritten below on a known code
		if category, err := ids.TransportCategoryForTrainType(ev.TrainType); err == nil {
			categoryStr = string(category)
		} else {
			c.log.Warn().Str("train_type", ev.TrainType).Msg("unmapped train type, recording as UNKNOWN")
		}
		events = append(events, model.JourneyEvent{
			ID:               ids.JourneyEventID(journeyID, ev.Index, ev.Type),
			JourneyID:        journeyID,
			EventIndex:       ev.Index,
			EventType:        model.EventType(ev.Type),
			PointID:          point.ID,
			InPlayableBorder: point.Border.Contains(refdata.LatLon{Lat: point.Lat, Lon: point.Lon}),
			ScheduledTime:    ev.ScheduledTime,
			RealtimeTimeType: model.PrecisionSchedule,
			Transport: model.TransportDescriptor{
				Category: categoryStr,
				Number:   ev.TrainNumber,
				Line:     ev.Line,
				Label:    ev.Label,
				Type:     ev.TrainType,
				MaxSpeed: ev.MaxSpeed,
			},
			StopType:          model.StopType(ev.StopType),
			ScheduledPlatform: ev.ScheduledPlatform,
			ScheduledTrack:    ev.ScheduledTrack,
		})
	}

	c.reconciler.GetOrCreate(run.RunID, model.Journey{
		ID:           journeyID,
		ServerID:     serverID,
		ForeignRunID: run.RunID,
		Events:       events,
	})
	return nil
}
