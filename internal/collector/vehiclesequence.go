package collector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trainsim/sit-collector/internal/ids"
	"github.com/trainsim/sit-collector/internal/journey"
	"github.com/trainsim/sit-collector/internal/model"
	"github.com/trainsim/sit-collector/internal/refdata"
	"github.com/trainsim/sit-collector/internal/upstream"
)

// VehicleSequenceStore is the persistence surface the vehicle-sequence
// collector writes to.
type VehicleSequenceStore interface {
	SaveVehicleSequence(ctx context.Context, v model.VehicleSequence) error
}

// VehicleSequenceCollector resolves a journey's railcar consist from the
// upstream vehicle consist listing (Client.ListVehicleConsists), keyed by
// the stable SequenceResolveKey of spec.md §3 so PREDICTION rows are
// replaced in place once a REAL consist is observed.
type VehicleSequenceCollector struct {
	client     *upstream.Client
	reconciler *journey.Reconciler
	railcars   *refdata.Railcars
	store      VehicleSequenceStore
	log        zerolog.Logger
}

// NewVehicleSequenceCollector builds a vehicle-sequence collector.
func NewVehicleSequenceCollector(client *upstream.Client, reconciler *journey.Reconciler, railcars *refdata.Railcars, store VehicleSequenceStore, log zerolog.Logger) *VehicleSequenceCollector {
	return &VehicleSequenceCollector{client: client, reconciler: reconciler, railcars: railcars, store: store, log: log}
}

// TickServer fetches and reconciles the reported railcar consist of every
// active run on one server.
func (c *VehicleSequenceCollector) TickServer(ctx context.Context, serverCode string) error {
	consists, err := c.client.ListVehicleConsists(ctx, serverCode)
	if err != nil && err != upstream.ErrNotModified {
		return fmt.Errorf("collector: listing vehicle consists for %s: %w", serverCode, err)
	}

	for _, consist := range consists {
		status := model.SequencePrediction
		if consist.IsObserved {
			status = model.SequenceReal
		}
		if err := c.ReconcileSequence(ctx, consist.RunID, consist.RailcarIDs, status); err != nil {
			c.log.Error().Err(err).Str("run", consist.RunID).Msg("vehicle sequence reconciliation failed, skipping object")
		}
	}
	return nil
}

// ReconcileSequence resolves and persists a journey's consist from a list of
// upstream railcar API ids plus whether the observation is a confirmed REAL
// consist or a PREDICTION carried over from a similar scheduled run.
func (c *VehicleSequenceCollector) ReconcileSequence(ctx context.Context, runID string, apiRailcarIDs []string, status model.VehicleSequenceStatus) error {
	rec, ok := c.reconciler.Find(runID)
	if !ok {
		return nil
	}
	snap := c.reconciler.SnapshotForSequence(rec)
	if len(snap.Events) == 0 {
		return nil
	}

	refs := make([]model.RailcarRef, 0, len(apiRailcarIDs))
	for _, apiID := range apiRailcarIDs {
		rc, ok := c.railcars.ByAPIID(apiID)
		if !ok {
			continue // schema drift: unknown load/railcar, skip this entry and keep going
		}
		refs = append(refs, model.RailcarRef{RailcarID: rc.ID})
	}

	first := snap.Events[0]
	last := snap.Events[len(snap.Events)-1]
	resolveKey := model.SequenceResolveKey(first.Transport.Category, first.Transport.Number, first.PointID.String(), last.PointID.String(), first.ScheduledTime)

	seqID, err := ids.NewVehicleSequenceID()
	if err != nil {
		return fmt.Errorf("collector: generating vehicle sequence id: %w", err)
	}

	seq := model.VehicleSequence{
		ID:                 seqID,
		JourneyID:          snap.JourneyID,
		Status:             status,
		Railcars:           refs,
		SequenceResolveKey: resolveKey,
	}
	if err := c.store.SaveVehicleSequence(ctx, seq); err != nil {
		return fmt.Errorf("collector: saving vehicle sequence for run %s: %w", runID, err)
	}
	c.reconciler.AttachSequence(rec, seq)
	return nil
}
