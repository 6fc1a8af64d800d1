package journey

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainsim/sit-collector/internal/cache"
	"github.com/trainsim/sit-collector/internal/model"
)

func newTestReconciler() *Reconciler {
	c := cache.New[*Record](RecordKeys, time.Minute, nil)
	return New(c, 3, 2*time.Minute, zerolog.Nop())
}

func playableEvent(idx int, scheduled time.Time) model.JourneyEvent {
	return model.JourneyEvent{
		ID:               uuid.New(),
		EventIndex:       idx,
		EventType:        model.EventArrival,
		PointID:          uuid.New(),
		InPlayableBorder: true,
		ScheduledTime:    scheduled,
		RealtimeTimeType: model.PrecisionSchedule,
	}
}

// S6 Cancellation inference, first case: events 0..1 reached REAL, 2..3 in
// the future. Expected: events 2,3 cancelled, journey not cancelled.
func TestApplyRemovalCancelsOnlyFutureEvents(t *testing.T) {
	r := newTestReconciler()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	events := []model.JourneyEvent{
		playableEvent(0, now.Add(-2*time.Hour)),
		playableEvent(1, now.Add(-1*time.Hour)),
		playableEvent(2, now.Add(1*time.Hour)),
		playableEvent(3, now.Add(2*time.Hour)),
	}
	events[0].RealtimeTimeType = model.PrecisionReal
	events[1].RealtimeTimeType = model.PrecisionReal

	rec := NewRecord(model.Journey{ForeignRunID: "run-1", Events: events})
	rec.State = StateGone

	changed := r.ApplyRemoval(rec, RemovalUpdate{ServerNow: now})

	require.True(t, changed)
	assert.False(t, rec.Journey.Events[0].Cancelled)
	assert.False(t, rec.Journey.Events[1].Cancelled)
	assert.True(t, rec.Journey.Events[2].Cancelled)
	assert.True(t, rec.Journey.Events[3].Cancelled)
	assert.False(t, rec.Journey.Cancelled)
	assert.Equal(t, StateGone, rec.State)
}

// S6 Cancellation inference, second case: all events in the future (first
// playable event never reached REAL). Expected: whole journey cancelled.
func TestApplyRemovalCancelsWholeJourneyWhenFirstPlayableNeverReached(t *testing.T) {
	r := newTestReconciler()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	events := []model.JourneyEvent{
		playableEvent(0, now.Add(1*time.Hour)),
		playableEvent(1, now.Add(2*time.Hour)),
		playableEvent(2, now.Add(3*time.Hour)),
		playableEvent(3, now.Add(4*time.Hour)),
	}

	rec := NewRecord(model.Journey{ForeignRunID: "run-2", Events: events})
	rec.State = StateGone

	changed := r.ApplyRemoval(rec, RemovalUpdate{ServerNow: now})

	require.True(t, changed)
	for _, e := range rec.Journey.Events {
		assert.True(t, e.Cancelled)
	}
	assert.True(t, rec.Journey.Cancelled)
	assert.Equal(t, StateCancelled, rec.State)
}

// Property 4: idempotence via checksum suppression — an unchanged journey
// suppresses a second tick.
func TestShouldSuppressOnUnchangedChecksum(t *testing.T) {
	r := newTestReconciler()
	events := []model.JourneyEvent{playableEvent(0, time.Now())}
	rec := NewRecord(model.Journey{ForeignRunID: "run-3", Events: events})

	assert.False(t, r.ShouldSuppress(rec), "first observation must never suppress")
	assert.True(t, r.ShouldSuppress(rec), "unchanged state on the next tick must suppress")

	rec.Journey.Events[0].Cancelled = true
	assert.False(t, r.ShouldSuppress(rec), "a real change must not suppress")
	assert.True(t, r.ShouldSuppress(rec), "the now-unchanged state suppresses again")
}

// Property 6: cancelled iff every playable event is cancelled.
func TestAllPlayableCancelledMatchesJourneyCancelledInvariant(t *testing.T) {
	events := []model.JourneyEvent{
		playableEvent(0, time.Now()),
		playableEvent(1, time.Now()),
	}
	rec := NewRecord(model.Journey{Events: events})
	assert.False(t, rec.AllPlayableCancelled())

	rec.Journey.Events[0].Cancelled = true
	assert.False(t, rec.AllPlayableCancelled())

	rec.Journey.Events[1].Cancelled = true
	assert.True(t, rec.AllPlayableCancelled())
}

func TestApplyPointChangeStampsArrivalAndReprojectsBetween(t *testing.T) {
	r := newTestReconciler()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	p0, p1, p2 := uuid.New(), uuid.New(), uuid.New()
	events := []model.JourneyEvent{
		{EventIndex: 0, PointID: p0, ScheduledTime: base, RealtimeTimeType: model.PrecisionReal, RealtimeTime: ptrTime(base)},
		{EventIndex: 1, PointID: p1, ScheduledTime: base.Add(5 * time.Minute), RealtimeTimeType: model.PrecisionSchedule},
		{EventIndex: 2, PointID: p2, ScheduledTime: base.Add(10 * time.Minute), RealtimeTimeType: model.PrecisionSchedule},
	}
	rec := NewRecord(model.Journey{ForeignRunID: "run-4", Events: events})
	rec.LastReachedIndex = 0

	observedAt := base.Add(12 * time.Minute)
	r.ApplyPointChange(rec, PointChangeUpdate{
		ServerNow:      observedAt,
		CurrentPointID: p2,
	})

	require.Equal(t, model.PrecisionReal, rec.Journey.Events[2].RealtimeTimeType)
	require.NotNil(t, rec.Journey.Events[2].RealtimeTime)
	assert.True(t, rec.Journey.Events[2].RealtimeTime.Equal(observedAt))

	require.Equal(t, model.PrecisionPrediction, rec.Journey.Events[1].RealtimeTimeType)
	require.NotNil(t, rec.Journey.Events[1].RealtimeTime)
	assert.True(t, rec.Journey.Events[1].RealtimeTime.After(base))
	assert.True(t, rec.Journey.Events[1].RealtimeTime.Before(observedAt))

	// p2 is the last event, reached 2m after schedule: within the completion slack.
	assert.Equal(t, StateCompleted, rec.State)
	assert.Equal(t, 2, rec.LastReachedIndex)
}

func TestApplyPointChangeNeverRegressesAnEventAlreadyReal(t *testing.T) {
	r := newTestReconciler()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	p0 := uuid.New()
	stamped := base.Add(1 * time.Minute)

	events := []model.JourneyEvent{
		{EventIndex: 0, PointID: p0, ScheduledTime: base, RealtimeTimeType: model.PrecisionReal, RealtimeTime: &stamped},
	}
	rec := NewRecord(model.Journey{ForeignRunID: "run-5", Events: events})
	rec.LastReachedIndex = -1

	r.ApplyPointChange(rec, PointChangeUpdate{ServerNow: base.Add(10 * time.Minute), CurrentPointID: p0})

	assert.True(t, rec.Journey.Events[0].RealtimeTime.Equal(stamped), "an already-REAL event must not be re-stamped")
}

func TestTryLinkContinuationRequiresMatchingPointAndOrdering(t *testing.T) {
	r := newTestReconciler()
	shared := uuid.New()
	now := time.Now()
	earlier := now.Add(-time.Hour)

	parent := NewRecord(model.Journey{
		ID:           uuid.New(),
		Events:       []model.JourneyEvent{{PointID: uuid.New()}, {PointID: shared}},
		LastSeenTime: &now,
	})
	child := NewRecord(model.Journey{
		ID:            uuid.New(),
		Events:        []model.JourneyEvent{{PointID: shared}},
		FirstSeenTime: &now,
	})

	assert.True(t, r.TryLinkContinuation(parent, child))
	require.NotNil(t, parent.Journey.ContinuationJourneyID)
	assert.Equal(t, child.Journey.ID, *parent.Journey.ContinuationJourneyID)

	childTooEarly := NewRecord(model.Journey{
		ID:            uuid.New(),
		Events:        []model.JourneyEvent{{PointID: shared}},
		FirstSeenTime: &earlier,
	})
	parent2 := NewRecord(model.Journey{Events: []model.JourneyEvent{{PointID: shared}}, LastSeenTime: &now})
	assert.False(t, r.TryLinkContinuation(parent2, childTooEarly))
}

func ptrTime(t time.Time) *time.Time { return &t }
