package collector

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainsim/sit-collector/internal/cache"
	"github.com/trainsim/sit-collector/internal/journey"
	"github.com/trainsim/sit-collector/internal/model"
	"github.com/trainsim/sit-collector/internal/refdata"
)

type fakeVehicleSequenceStore struct {
	saved []model.VehicleSequence
}

func (f *fakeVehicleSequenceStore) SaveVehicleSequence(ctx context.Context, v model.VehicleSequence) error {
	f.saved = append(f.saved, v)
	return nil
}

func newTestRailcars(t *testing.T) *refdata.Railcars {
	t.Helper()
	bundle := []map[string]any{
		{"id": "rc-1", "api_id": "api-1", "name": "Coach A", "length": 25.5},
		{"id": "rc-2", "api_id": "api-2", "name": "Coach B", "length": 25.5},
	}
	raw, err := json.Marshal(bundle)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "railcars.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	railcars, err := refdata.LoadRailcars(path)
	require.NoError(t, err)
	return railcars
}

func seededReconciler(t *testing.T, runID string) *journey.Reconciler {
	t.Helper()
	c := cache.New(journey.RecordKeys, time.Minute, nil)
	r := journey.New(c, 3, 2*time.Minute, zerolog.Nop())

	journeyID := uuid.New()
	r.GetOrCreate(runID, model.Journey{
		ID:           journeyID,
		ForeignRunID: runID,
		Events: []model.JourneyEvent{
			{
				PointID:       uuid.New(),
				Transport:     model.TransportDescriptor{Category: "REGIONAL", Number: "R1"},
				ScheduledTime: time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
			},
			{
				PointID:       uuid.New(),
				Transport:     model.TransportDescriptor{Category: "REGIONAL", Number: "R1"},
				ScheduledTime: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
			},
		},
	})
	return r
}

func TestReconcileSequenceSavesObservedConsist(t *testing.T) {
	reconciler := seededReconciler(t, "run-1")
	railcars := newTestRailcars(t)
	store := &fakeVehicleSequenceStore{}

	c := NewVehicleSequenceCollector(nil, reconciler, railcars, store, zerolog.Nop())

	err := c.ReconcileSequence(context.Background(), "run-1", []string{"api-1", "api-2"}, model.SequenceReal)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, model.SequenceReal, store.saved[0].Status)
	assert.Equal(t, []model.RailcarRef{{RailcarID: "rc-1"}, {RailcarID: "rc-2"}}, store.saved[0].Railcars)
	assert.NotEmpty(t, store.saved[0].SequenceResolveKey)
}

func TestReconcileSequenceSkipsUnknownRailcars(t *testing.T) {
	reconciler := seededReconciler(t, "run-2")
	railcars := newTestRailcars(t)
	store := &fakeVehicleSequenceStore{}

	c := NewVehicleSequenceCollector(nil, reconciler, railcars, store, zerolog.Nop())

	err := c.ReconcileSequence(context.Background(), "run-2", []string{"api-1", "unknown-api-id"}, model.SequencePrediction)
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.Equal(t, []model.RailcarRef{{RailcarID: "rc-1"}}, store.saved[0].Railcars)
}

func TestReconcileSequenceNoOpForUnknownRun(t *testing.T) {
	reconciler := seededReconciler(t, "run-3")
	railcars := newTestRailcars(t)
	store := &fakeVehicleSequenceStore{}

	c := NewVehicleSequenceCollector(nil, reconciler, railcars, store, zerolog.Nop())

	err := c.ReconcileSequence(context.Background(), "does-not-exist", []string{"api-1"}, model.SequenceReal)
	require.NoError(t, err)
	assert.Empty(t, store.saved)
}
