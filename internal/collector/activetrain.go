package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trainsim/sit-collector/internal/dispatch"
	"github.com/trainsim/sit-collector/internal/ids"
	"github.com/trainsim/sit-collector/internal/journey"
	"github.com/trainsim/sit-collector/internal/model"
	"github.com/trainsim/sit-collector/internal/refdata"
	"github.com/trainsim/sit-collector/internal/upstream"
)

// JourneyStore is the persistence surface the active-train collector writes
// reconciled journeys to.
type JourneyStore interface {
	SaveJourneyWithEvents(ctx context.Context, j model.Journey, checksum string) error
}

// ActiveTrainCollector polls live train runs and positions, feeding the
// journey reconciler (C5) one ForPointChange/ForSignalUpdate per tick per
// run and one ForRemoval for every run that has been absent from the listing
// for the reconciler's gone threshold of consecutive ticks.
type ActiveTrainCollector struct {
	client      *upstream.Client
	reconciler  *journey.Reconciler
	points      *refdata.Points
	signals     *refdata.Signals
	store       JourneyStore
	bus         *dispatch.Bus[*dispatch.JourneyUpdateFrame]
	broker      *dispatch.Broker
	log         zerolog.Logger

	mu             sync.Mutex
	lastSeenRunIDs map[uuid.UUID]map[string]struct{} // per server: run ids seen on its previous tick, plus absent runs not yet gone
}

// NewActiveTrainCollector builds an active-train collector.
func NewActiveTrainCollector(client *upstream.Client, reconciler *journey.Reconciler, points *refdata.Points, signals *refdata.Signals, store JourneyStore, bus *dispatch.Bus[*dispatch.JourneyUpdateFrame], broker *dispatch.Broker, log zerolog.Logger) *ActiveTrainCollector {
	return &ActiveTrainCollector{
		client: client, reconciler: reconciler, points: points, signals: signals,
		store: store, bus: bus, broker: broker, log: log,
		lastSeenRunIDs: make(map[uuid.UUID]map[string]struct{}),
	}
}

// TickServer fetches and reconciles every active run of one server.
// serverForeignID is the upstream server id (used to derive journey UUIDs
// consistently with the timetable collector); serverCode is the short code
// the upstream trains/positions endpoints are addressed by.
func (c *ActiveTrainCollector) TickServer(ctx context.Context, serverID uuid.UUID, serverForeignID, serverCode string) error {
	trains, err := c.client.ListActiveTrains(ctx, serverCode)
	listingUnchanged := err == upstream.ErrNotModified
	if err != nil && !listingUnchanged {
		return fmt.Errorf("collector: listing active trains for %s: %w", serverCode, err)
	}
	positions, err := c.client.ListActiveTrainPositions(ctx, serverCode)
	if err != nil && err != upstream.ErrNotModified {
		return fmt.Errorf("collector: listing active train positions for %s: %w", serverCode, err)
	}

	byRun := make(map[string]upstream.TrainPositionDTO, len(positions))
	for _, p := range positions {
		byRun[p.RunID] = p
	}
	if listingUnchanged {
		// 304: the run listing is the one last received. Reconcile the runs
		// that reported a position and leave the tracked run set as it is.
		for _, p := range positions {
			trains = append(trains, upstream.ActiveTrainDTO{RunID: p.RunID})
		}
	}

	now := map[string]struct{}{}
	for _, train := range trains {
		now[train.RunID] = struct{}{}
		pos, ok := byRun[train.RunID]
		if !ok {
			continue // position not yet reported this tick: wait for the next one
		}
		if err := c.reconcileOne(ctx, serverID, serverForeignID, train, pos); err != nil {
			c.log.Error().Err(err).Str("run", train.RunID).Msg("journey reconciliation failed, skipping object")
		}
	}

	if listingUnchanged {
		return nil
	}

	c.mu.Lock()
	previouslySeen := c.lastSeenRunIDs[serverID]
	c.mu.Unlock()

	for runID := range previouslySeen {
		if _, stillPresent := now[runID]; stillPresent {
			continue
		}
		if rec, found := c.reconciler.Find(runID); found && rec.State == journey.StateActive && !c.reconciler.MarkMissingTick(rec) {
			now[runID] = struct{}{} // absent for fewer ticks than the gone threshold: keep tracking
			continue
		}
		if err := c.reconcileRemoval(ctx, runID); err != nil {
			c.log.Error().Err(err).Str("run", runID).Msg("journey removal failed, skipping object")
		}
	}

	c.mu.Lock()
	c.lastSeenRunIDs[serverID] = now
	c.mu.Unlock()

	return nil
}

func (c *ActiveTrainCollector) reconcileOne(ctx context.Context, serverID uuid.UUID, serverForeignID string, train upstream.ActiveTrainDTO, pos upstream.TrainPositionDTO) error {
	currentPoint, ok := c.points.ByForeignID(pos.PointForeignID)
	if !ok {
		return nil // reference miss: drop this object for the tick, per spec.md §9
	}

	rec, found := c.reconciler.Find(train.RunID)
	if !found {
		rec = c.reconciler.GetOrCreate(train.RunID, model.Journey{
			ID:           ids.JourneyID(serverForeignID, train.RunID),
			ServerID:     serverID,
			ForeignRunID: train.RunID,
		})
	}

	var prevPointID *uuid.UUID
	if pos.PrevPointForeignID != nil {
		if p, ok := c.points.ByForeignID(*pos.PrevPointForeignID); ok {
			id := p.ID
			prevPointID = &id
		}
	}

	c.reconciler.ApplyPointChange(rec, journey.PointChangeUpdate{
		ServerNow:                time.Now().UTC(),
		PrevPointID:              prevPointID,
		CurrentPointID:           currentPoint.ID,
		NextSignalID:             pos.NextSignalID,
		NextSignalDistanceMeters: pos.NextSignalDistanceMeters,
	})

	if pos.NextSignalID != nil {
		if sig, ok := c.signals.ByPointAndSignal(currentPoint.ID, *pos.NextSignalID); ok {
			c.reconciler.ApplySignalUpdate(rec, journey.SignalUpdateInput{
				CurrentPointID:   currentPoint.ID,
				ResolvedPlatform: sig.Platform,
				ResolvedTrack:    sig.Track,
			})
		}
	}

	rec.DriverID.SetIfNullable(train.DriverID)
	rec.SpeedKmh.Set(int(pos.SpeedKmh))
	rec.Lat.Set(pos.Lat)
	rec.Lon.Set(pos.Lon)
	liveDirty, liveChanges := rec.Fields.ConsumeDirty()

	suppressed := c.reconciler.ShouldSuppress(rec)
	if !suppressed {
		if err := c.store.SaveJourneyWithEvents(ctx, rec.Journey, rec.Checksum); err != nil {
			return fmt.Errorf("persisting journey %s: %w", train.RunID, err)
		}
	}

	if !liveDirty && suppressed {
		return nil
	}

	updateType := dispatch.UpdateTypeUpdate
	if !found {
		updateType = dispatch.UpdateTypeAdd
	}
	frame := dispatch.BuildJourneyFrame(rec.Journey.ID.String(), serverID.String(), updateType, liveChanges)
	frame.EventUpdated = !suppressed
	c.bus.Publish(frame)
	if payload, err := dispatch.Marshal(frame); err == nil {
		c.broker.Publish(dispatch.KindJourneyUpdate, serverID.String(), rec.Journey.ID.String(), payload)
	}
	return nil
}

func (c *ActiveTrainCollector) reconcileRemoval(ctx context.Context, runID string) error {
	rec, found := c.reconciler.Find(runID)
	if !found {
		return nil
	}
	changed := c.reconciler.ApplyRemoval(rec, journey.RemovalUpdate{ServerNow: time.Now().UTC()})
	if !changed {
		return nil
	}
	if err := c.store.SaveJourneyWithEvents(ctx, rec.Journey, journey.Checksum(rec.Journey)); err != nil {
		return fmt.Errorf("persisting removed journey %s: %w", runID, err)
	}
	frame := dispatch.BuildJourneyFrame(rec.Journey.ID.String(), rec.Journey.ServerID.String(), dispatch.UpdateTypeRemove, nil)
	c.bus.Publish(frame)
	if payload, err := dispatch.Marshal(frame); err == nil {
		c.broker.Publish(dispatch.KindJourneyRemoval, rec.Journey.ServerID.String(), rec.Journey.ID.String(), payload)
	}
	return nil
}
