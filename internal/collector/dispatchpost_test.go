package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainsim/sit-collector/internal/cache"
	"github.com/trainsim/sit-collector/internal/dispatch"
	"github.com/trainsim/sit-collector/internal/model"
	"github.com/trainsim/sit-collector/internal/refdata"
	"github.com/trainsim/sit-collector/internal/upstream"
)

type fakeDispatchPostStore struct {
	writes []model.DispatchPost
}

func (f *fakeDispatchPostStore) UpsertDispatchPost(ctx context.Context, v model.DispatchPost, dispatcherIDs []string) error {
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeDispatchPostStore) MarkUncontainedDeleted(ctx context.Context, serverID uuid.UUID, seen []uuid.UUID) error {
	return nil
}

func emptyPoints(t *testing.T) *refdata.Points {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	points, err := refdata.LoadPoints(path)
	require.NoError(t, err)
	return points
}

func newTestDispatchPostCollector(t *testing.T, writeInterval time.Duration) (*DispatchPostCollector, *fakeDispatchPostStore) {
	t.Helper()
	c := cache.New(DispatchPostRecordKeys, time.Minute, nil)
	store := &fakeDispatchPostStore{}
	bus := dispatch.NewBus[*dispatch.DispatchPostUpdateFrame](zerolog.Nop())
	collector := NewDispatchPostCollector(nil, c, emptyPoints(t), store, bus, nil, writeInterval, zerolog.Nop())
	return collector, store
}

func TestReconcileOneAlwaysWritesOnFirstSight(t *testing.T) {
	collector, store := newTestDispatchPostCollector(t, time.Hour)

	dto := upstream.DispatchPostDTO{ID: "post-1", PointName: "unknown-point"}
	_, err := collector.reconcileOne(context.Background(), uuid.New(), dto)
	require.NoError(t, err)

	assert.Len(t, store.writes, 1, "a newly discovered post must always be persisted")
}

func TestReconcileOneSkipsWriteWhenUnchangedAndFresh(t *testing.T) {
	collector, store := newTestDispatchPostCollector(t, time.Hour)
	serverID := uuid.New()
	dto := upstream.DispatchPostDTO{ID: "post-1", PointName: "unknown-point"}

	_, err := collector.reconcileOne(context.Background(), serverID, dto)
	require.NoError(t, err)
	require.Len(t, store.writes, 1)

	_, err = collector.reconcileOne(context.Background(), serverID, dto)
	require.NoError(t, err)
	assert.Len(t, store.writes, 1, "an unchanged post within the write interval must not be re-persisted")
}

func TestReconcileOneWritesAfterIntervalElapsesEvenIfUnchanged(t *testing.T) {
	collector, store := newTestDispatchPostCollector(t, 0)
	serverID := uuid.New()
	dto := upstream.DispatchPostDTO{ID: "post-1", PointName: "unknown-point"}

	_, err := collector.reconcileOne(context.Background(), serverID, dto)
	require.NoError(t, err)
	_, err = collector.reconcileOne(context.Background(), serverID, dto)
	require.NoError(t, err)

	assert.Len(t, store.writes, 2, "a zero write interval means every tick re-persists")
}

func TestReconcileOneAlwaysWritesOnContentChange(t *testing.T) {
	collector, store := newTestDispatchPostCollector(t, time.Hour)
	serverID := uuid.New()

	_, err := collector.reconcileOne(context.Background(), serverID, upstream.DispatchPostDTO{ID: "post-1", PointName: "unknown-point"})
	require.NoError(t, err)
	require.Len(t, store.writes, 1)

	_, err = collector.reconcileOne(context.Background(), serverID, upstream.DispatchPostDTO{
		ID: "post-1", PointName: "unknown-point", DispatcherIDs: []string{"dispatcher-1"},
	})
	require.NoError(t, err)
	assert.Len(t, store.writes, 2, "a content change must write even within the throttle window")
}
