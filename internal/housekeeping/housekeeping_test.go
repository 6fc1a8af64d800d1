package housekeeping

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	calls     int32
	cutoffs   []time.Time
	batchSize int
	deleted   int
	err       error
}

func (f *fakeStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	f.cutoffs = append(f.cutoffs, cutoff)
	f.batchSize = batchSize
	return f.deleted, f.err
}

func TestRunNowSweepsWithCorrectCutoffAndBatchSize(t *testing.T) {
	store := &fakeStore{deleted: 5}
	retention := 90 * 24 * time.Hour

	job, err := New(store, retention, 30000, "0 0 5 * * *", zerolog.Nop())
	require.NoError(t, err)

	before := time.Now().Add(-retention)
	job.RunNow()
	after := time.Now().Add(-retention)

	require.Len(t, store.cutoffs, 1)
	assert.True(t, !store.cutoffs[0].Before(before) && !store.cutoffs[0].After(after))
	assert.Equal(t, 30000, store.batchSize)
}

func TestRunNowSwallowsStoreError(t *testing.T) {
	store := &fakeStore{err: assert.AnError}
	job, err := New(store, time.Hour, 100, "0 0 5 * * *", zerolog.Nop())
	require.NoError(t, err)

	assert.NotPanics(t, job.RunNow)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	store := &fakeStore{}
	_, err := New(store, time.Hour, 100, "not a cron expression", zerolog.Nop())
	assert.Error(t, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &fakeStore{}
	job, err := New(store, time.Hour, 100, "*/1 * * * * *", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Run(ctx)
		close(done)
	}()

	time.Sleep(1200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&store.calls), int32(1))
}
