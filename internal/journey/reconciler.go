// Package journey implements the journey reconciler (C5) described in
// spec.md §4.5: the per-run state machine, the three update-request variants
// a live tick can carry, continuation chaining, and checksum-based
// suppression. It is the hardest single component in the system; the style
// (small exported apply-methods mutating an owned record under its own
// lock, returning a bool the caller uses to decide whether to fan out) is
// carried from the teacher's internal/db/writer.go upsert pattern,
// generalized from "one row" to "one state machine per run".
package journey

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trainsim/sit-collector/internal/cache"
	"github.com/trainsim/sit-collector/internal/model"
)

// RecordKeys is the cache.KeyFuncs for Record: primary key is the foreign
// run id (the identity upstream actually reports on each tick), secondary
// key is the derived journey UUID (used by collectors that already resolved
// it).
var RecordKeys = cache.KeyFuncs[*Record]{
	PrimaryKey: func(r *Record) string { return r.Journey.ForeignRunID },
	SecondaryKey: func(r *Record) (string, bool) {
		if r.Journey.ID == uuid.Nil {
			return "", false
		}
		return r.Journey.ID.String(), true
	},
}

// Reconciler owns the live journey cache and the threshold/slack knobs that
// parameterise the state machine.
type Reconciler struct {
	cache           *cache.Cache[*Record]
	goneThreshold   int
	completionSlack time.Duration
	log             zerolog.Logger
}

// New builds a reconciler over a pre-built journey cache. goneThreshold is
// the number of consecutive absent ticks (spec.md §4.5's N) before a run
// transitions Active → Gone; completionSlack is the allowance past a
// scheduled terminal time before Completed is inferred.
func New(c *cache.Cache[*Record], goneThreshold int, completionSlack time.Duration, log zerolog.Logger) *Reconciler {
	return &Reconciler{cache: c, goneThreshold: goneThreshold, completionSlack: completionSlack, log: log}
}

// GetOrCreate returns the live record for a run, creating and inserting an
// Unseen one from seed if none exists yet.
func (r *Reconciler) GetOrCreate(foreignRunID string, seed model.Journey) *Record {
	if rec, ok := r.cache.FindPrimary(foreignRunID); ok {
		return rec
	}
	rec := NewRecord(seed)
	r.cache.UpdateLocal(rec)
	return rec
}

// Find looks up a live record by foreign run id without creating one.
func (r *Reconciler) Find(foreignRunID string) (*Record, bool) {
	return r.cache.FindPrimary(foreignRunID)
}

// FindByJourneyID looks up a live record by its derived journey UUID.
func (r *Reconciler) FindByJourneyID(id uuid.UUID) (*Record, bool) {
	return r.cache.FindSecondary(id.String())
}

// PointChangeUpdate is the ForPointChange variant of spec.md §4.5.
type PointChangeUpdate struct {
	ServerNow                time.Time
	PrevPointID              *uuid.UUID
	CurrentPointID           uuid.UUID
	NextSignalID             *string
	NextSignalDistanceMeters *float64
}

const nextSignalRangeMeters = 5000.0

// ApplyPointChange handles a run crossing a point boundary: it stamps the
// arrival/departure realtime times, re-projects the skipped-over events at
// an average run-rate, and updates the live next-signal overlay.
func (r *Reconciler) ApplyPointChange(rec *Record, u PointChangeUpdate) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	events := rec.Journey.Events
	curIdx := -1
	for i := rec.LastReachedIndex + 1; i < len(events); i++ {
		if events[i].PointID == u.CurrentPointID {
			curIdx = i
			break
		}
	}
	if curIdx == -1 {
		return // reference miss for this tick: nothing local to anchor on
	}

	stampReal(&events[curIdx], u.ServerNow)

	if u.PrevPointID != nil {
		for i := range events {
			if events[i].PointID == *u.PrevPointID && events[i].EventType == model.EventDeparture {
				stampReal(&events[i], u.ServerNow)
				break
			}
		}
	}

	reprojectBetween(events, rec.LastReachedIndex, curIdx, u.ServerNow)
	rec.LastReachedIndex = curIdx
	rec.Journey.Events = events

	if rec.State == StateUnseen {
		rec.State = StateActive
		now := u.ServerNow
		rec.Journey.FirstSeenTime = &now
	}
	rec.ConsecutiveMisses = 0

	if curIdx == len(events)-1 && withinSlack(events[curIdx], u.ServerNow, r.completionSlack) {
		rec.State = StateCompleted
	}

	if u.NextSignalID != nil && u.NextSignalDistanceMeters != nil && *u.NextSignalDistanceMeters <= nextSignalRangeMeters {
		rec.NextSignalName.SetIfNullable(u.NextSignalID)
		rec.NextSignalDist.Set(*u.NextSignalDistanceMeters)
	} else {
		rec.NextSignalName.Set(nil)
		rec.NextSignalDist.Set(0)
	}

	rec.version++
}

// stampReal sets an event's realtime time to now, unless it has already
// reached REAL — a realtime time type never regresses (spec.md §4.5's
// ordering rule), except for the cancellation flip applied elsewhere.
func stampReal(e *model.JourneyEvent, now time.Time) {
	if e.RealtimeTimeType == model.PrecisionReal {
		return
	}
	t := now
	e.RealtimeTime = &t
	e.RealtimeTimeType = model.PrecisionReal
}

// reprojectBetween re-estimates the scheduled-only events strictly between
// fromIdx and toIdx using the observed run-rate between the two anchors,
// leaving any event that has already reached REAL untouched.
func reprojectBetween(events []model.JourneyEvent, fromIdx, toIdx int, observedAt time.Time) {
	if toIdx-fromIdx <= 1 {
		return
	}
	anchorIdx := fromIdx
	if anchorIdx < 0 {
		anchorIdx = 0
	}
	anchorScheduled := events[anchorIdx].ScheduledTime
	anchorRealtime := anchorScheduled
	if events[anchorIdx].RealtimeTime != nil {
		anchorRealtime = *events[anchorIdx].RealtimeTime
	}

	scheduledSpan := events[toIdx].ScheduledTime.Sub(anchorScheduled)
	if scheduledSpan <= 0 {
		return
	}
	realSpan := observedAt.Sub(anchorRealtime)

	for i := fromIdx + 1; i < toIdx; i++ {
		if events[i].RealtimeTimeType == model.PrecisionReal {
			continue
		}
		frac := events[i].ScheduledTime.Sub(anchorScheduled).Seconds() / scheduledSpan.Seconds()
		projected := anchorRealtime.Add(time.Duration(float64(realSpan) * frac))
		events[i].RealtimeTime = &projected
		events[i].RealtimeTimeType = model.PrecisionPrediction
	}
}

func withinSlack(e model.JourneyEvent, observedAt time.Time, slack time.Duration) bool {
	return !observedAt.After(e.ScheduledTime.Add(slack))
}

// SignalUpdateInput is the ForSignalUpdate variant of spec.md §4.5. Platform
// and track resolution against the signal map happens upstream of the
// reconciler (in the collector, which owns refdata); the reconciler only
// applies the already-resolved values to the matching passenger-stop event.
type SignalUpdateInput struct {
	CurrentPointID   uuid.UUID
	ResolvedPlatform *string
	ResolvedTrack    *string
}

// ApplySignalUpdate sets the realtime platform/track of the passenger-stop
// event at the current point, if any. No other event is touched.
func (r *Reconciler) ApplySignalUpdate(rec *Record, u SignalUpdateInput) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	for i := range rec.Journey.Events {
		e := &rec.Journey.Events[i]
		if e.PointID == u.CurrentPointID && e.StopType == model.StopPassenger {
			e.RealtimePlatform = u.ResolvedPlatform
			e.RealtimeTrack = u.ResolvedTrack
			rec.version++
			return
		}
	}
}

// RemovalUpdate is the ForRemoval variant of spec.md §4.5.
type RemovalUpdate struct {
	ServerNow time.Time
}

// ApplyRemoval decides cancellation when a run vanishes from upstream: every
// not-yet-due playable event is cancelled; if the first playable event was
// never reached in realtime, the whole journey is cancelled. Returns whether
// anything changed, so the caller can decide whether to persist/fan out.
func (r *Reconciler) ApplyRemoval(rec *Record, u RemovalUpdate) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	changed := false
	firstPlayableIdx := -1
	for i := range rec.Journey.Events {
		if rec.Journey.Events[i].InPlayableBorder {
			firstPlayableIdx = i
			break
		}
	}

	for i := range rec.Journey.Events {
		e := &rec.Journey.Events[i]
		if !e.InPlayableBorder || e.Cancelled {
			continue
		}
		if !e.ScheduledTime.Before(u.ServerNow) {
			e.Cancelled = true
			changed = true
		}
	}

	if firstPlayableIdx != -1 && rec.Journey.Events[firstPlayableIdx].RealtimeTimeType != model.PrecisionReal {
		if !rec.Journey.Cancelled {
			rec.Journey.Cancelled = true
			changed = true
		}
	}

	now := u.ServerNow
	rec.Journey.LastSeenTime = &now

	if rec.Journey.Cancelled {
		rec.State = StateCancelled
	} else if rec.AllPlayableCancelled() {
		rec.State = StateCancelled
		rec.Journey.Cancelled = true
		changed = true
	} else if rec.State != StateCompleted {
		rec.State = StateGone
	}

	if changed {
		rec.version++
	}
	return changed
}

// MarkMissingTick increments the consecutive-miss counter of an Active
// record and reports whether it has now crossed the Gone threshold.
func (r *Reconciler) MarkMissingTick(rec *Record) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.State != StateActive {
		return false
	}
	rec.ConsecutiveMisses++
	return rec.ConsecutiveMisses >= r.goneThreshold
}

// TryLinkContinuation attempts to chain parent → child per spec.md §4.5: the
// child's first event point must match the parent's last event point, and
// (when both are known) the child must not have been first seen before the
// parent was last seen. Returns whether the link was made.
func (r *Reconciler) TryLinkContinuation(parent, child *Record) bool {
	parent.mu.Lock()
	defer parent.mu.Unlock()
	child.mu.Lock()
	defer child.mu.Unlock()

	if len(parent.Journey.Events) == 0 || len(child.Journey.Events) == 0 {
		return false
	}
	last := parent.Journey.Events[len(parent.Journey.Events)-1]
	first := child.Journey.Events[0]
	if last.PointID != first.PointID {
		return false
	}
	if child.Journey.FirstSeenTime != nil && parent.Journey.LastSeenTime != nil &&
		child.Journey.FirstSeenTime.Before(*parent.Journey.LastSeenTime) {
		return false
	}

	id := child.Journey.ID
	parent.Journey.ContinuationJourneyID = &id
	parent.version++
	return true
}

// ShouldSuppress computes rec's current checksum and compares it against the
// previously recorded one. If unchanged, it returns true (persistence and
// fan-out should be skipped this tick) without mutating rec; otherwise it
// stores the new checksum and returns false.
func (r *Reconciler) ShouldSuppress(rec *Record) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	sum := Checksum(rec.Journey)
	if sum == rec.Checksum {
		return true
	}
	rec.Checksum = sum
	return false
}

// SequenceSnapshot is the read the vehicle-sequence collector needs to
// resolve a journey's railcar consist.
type SequenceSnapshot struct {
	JourneyID uuid.UUID
	Events    []model.JourneyEvent
}

// SnapshotForSequence reads the journey id and event list under rec's lock,
// the same coordination every other Record access goes through (spec.md §5:
// the vehicle collector and the active-train/timetable collectors coordinate
// via the reconciler's per-journey optimistic-concurrency tokens).
func (r *Reconciler) SnapshotForSequence(rec *Record) SequenceSnapshot {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	events := make([]model.JourneyEvent, len(rec.Journey.Events))
	copy(events, rec.Journey.Events)
	return SequenceSnapshot{JourneyID: rec.Journey.ID, Events: events}
}

// AttachSequence stores the resolved vehicle sequence on rec under lock.
func (r *Reconciler) AttachSequence(rec *Record, seq model.VehicleSequence) {
	rec.mu.Lock()
	rec.Journey.Sequence = &seq
	rec.version++
	rec.mu.Unlock()
}
