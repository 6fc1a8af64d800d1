package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trainsim/sit-collector/internal/model"
)

// Store is the pgx-backed repository for the five entities of spec.md §3.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pgxpool against databaseURL. The caller owns the returned
// Store's lifetime and must call Close.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("persistence: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// EnsureSchema applies the DDL, matching the teacher's
// EnsureSchema-on-startup idiom from internal/db/sqlite.go.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("persistence: ensuring schema: %w", err)
	}
	return nil
}

// UpsertServer inserts or updates a server row keyed by its derived UUID.
func (s *Store) UpsertServer(ctx context.Context, v model.Server) error {
	tags, err := json.Marshal(v.Tags)
	if err != nil {
		return fmt.Errorf("persistence: marshalling server tags: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO servers (id, foreign_id, code, region, scenery, utc_offset_hours, spoken_language, tags, deleted, registered_since, update_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		ON CONFLICT (id) DO UPDATE SET
			code = excluded.code,
			region = excluded.region,
			scenery = excluded.scenery,
			utc_offset_hours = excluded.utc_offset_hours,
			spoken_language = excluded.spoken_language,
			tags = excluded.tags,
			deleted = excluded.deleted,
			update_time = now()
	`, v.ID, v.ForeignID, v.Code, v.Region, v.Scenery, v.UTCOffsetHours, v.SpokenLanguage, tags, v.Deleted, v.RegisteredSince)
	if err != nil {
		return fmt.Errorf("persistence: upserting server %s: %w", v.ForeignID, err)
	}
	return nil
}

// UpsertDispatchPost inserts or updates a dispatch post row.
func (s *Store) UpsertDispatchPost(ctx context.Context, v model.DispatchPost, dispatcherIDs []string) error {
	images, err := json.Marshal(v.ImageURLs)
	if err != nil {
		return fmt.Errorf("persistence: marshalling image urls: %w", err)
	}
	dispatchers, err := json.Marshal(dispatcherIDs)
	if err != nil {
		return fmt.Errorf("persistence: marshalling dispatcher ids: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO dispatch_posts (id, foreign_id, server_id, point_id, latitude, longitude, difficulty, image_urls, dispatcher_ids, deleted, update_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		ON CONFLICT (id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			difficulty = excluded.difficulty,
			image_urls = excluded.image_urls,
			dispatcher_ids = excluded.dispatcher_ids,
			deleted = excluded.deleted,
			update_time = now()
	`, v.ID, v.ForeignID, v.ServerID, v.PointID, v.Latitude, v.Longitude, v.Difficulty, images, dispatchers, v.Deleted)
	if err != nil {
		return fmt.Errorf("persistence: upserting dispatch post %s: %w", v.ForeignID, err)
	}
	return nil
}

// MarkUncontainedDeleted flips deleted=true for every dispatch post of
// server serverID whose id is not in the seen set, implementing property
// 2's "absent for a full tick ⇒ deleted stays true" rule.
func (s *Store) MarkUncontainedDeleted(ctx context.Context, serverID uuid.UUID, seen []uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE dispatch_posts SET deleted = true, update_time = now()
		WHERE server_id = $1 AND NOT deleted AND NOT (id = ANY($2))
	`, serverID, seen)
	if err != nil {
		return fmt.Errorf("persistence: marking uncontained dispatch posts deleted: %w", err)
	}
	return nil
}

// FindEventsByJourney returns the ordered events of a journey, leaving out
// cancelled events when liveOnly is set.
func (s *Store) FindEventsByJourney(ctx context.Context, journeyID uuid.UUID, liveOnly bool) ([]model.JourneyEvent, error) {
	query := `SELECT id, event_index, event_type, point_id, in_playable_border, scheduled_time,
		realtime_time, realtime_time_type, transport, stop_type,
		scheduled_platform, scheduled_track, realtime_platform, realtime_track, cancelled, additional
		FROM journey_events WHERE journey_id = $1`
	if liveOnly {
		query += " AND NOT cancelled"
	}
	query += " ORDER BY event_index ASC"

	rows, err := s.pool.Query(ctx, query, journeyID)
	if err != nil {
		return nil, fmt.Errorf("persistence: querying journey events: %w", err)
	}
	defer rows.Close()

	var events []model.JourneyEvent
	for rows.Next() {
		var e model.JourneyEvent
		var transport []byte
		if err := rows.Scan(&e.ID, &e.EventIndex, &e.EventType, &e.PointID, &e.InPlayableBorder, &e.ScheduledTime,
			&e.RealtimeTime, &e.RealtimeTimeType, &transport, &e.StopType,
			&e.ScheduledPlatform, &e.ScheduledTrack, &e.RealtimePlatform, &e.RealtimeTrack, &e.Cancelled, &e.Additional); err != nil {
			return nil, fmt.Errorf("persistence: scanning journey event: %w", err)
		}
		if err := json.Unmarshal(transport, &e.Transport); err != nil {
			return nil, fmt.Errorf("persistence: decoding transport descriptor: %w", err)
		}
		e.JourneyID = journeyID
		events = append(events, e)
	}
	return events, rows.Err()
}

// SaveJourneyWithEvents persists a journey and its full event set inside one
// transaction, retrying the transaction once on any error before surfacing
// the failure.
func (s *Store) SaveJourneyWithEvents(ctx context.Context, j model.Journey, checksum string) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if lastErr = s.saveJourneyTx(ctx, j, checksum); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("persistence: saving journey %s after retry: %w", j.ForeignRunID, lastErr)
}

func (s *Store) saveJourneyTx(ctx context.Context, j model.Journey, checksum string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO journeys (id, server_id, foreign_run_id, first_seen_time, last_seen_time, cancelled, continuation_journey_id, checksum, update_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
		ON CONFLICT (id) DO UPDATE SET
			first_seen_time = excluded.first_seen_time,
			last_seen_time = excluded.last_seen_time,
			cancelled = excluded.cancelled,
			continuation_journey_id = excluded.continuation_journey_id,
			checksum = excluded.checksum,
			update_time = now()
	`, j.ID, j.ServerID, j.ForeignRunID, j.FirstSeenTime, j.LastSeenTime, j.Cancelled, j.ContinuationJourneyID, checksum); err != nil {
		return fmt.Errorf("upserting journey: %w", err)
	}

	for _, e := range j.Events {
		transport, err := json.Marshal(e.Transport)
		if err != nil {
			return fmt.Errorf("marshalling transport descriptor: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO journey_events (id, journey_id, event_index, event_type, point_id, in_playable_border,
				scheduled_time, realtime_time, realtime_time_type, transport, stop_type,
				scheduled_platform, scheduled_track, realtime_platform, realtime_track, cancelled, additional)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			ON CONFLICT (journey_id, event_index) DO UPDATE SET
				point_id = excluded.point_id,
				in_playable_border = excluded.in_playable_border,
				scheduled_time = excluded.scheduled_time,
				realtime_time = excluded.realtime_time,
				realtime_time_type = excluded.realtime_time_type,
				transport = excluded.transport,
				stop_type = excluded.stop_type,
				scheduled_platform = excluded.scheduled_platform,
				scheduled_track = excluded.scheduled_track,
				realtime_platform = excluded.realtime_platform,
				realtime_track = excluded.realtime_track,
				cancelled = excluded.cancelled,
				additional = excluded.additional
		`, e.ID, j.ID, e.EventIndex, e.EventType, e.PointID, e.InPlayableBorder,
			e.ScheduledTime, e.RealtimeTime, e.RealtimeTimeType, transport, e.StopType,
			e.ScheduledPlatform, e.ScheduledTrack, e.RealtimePlatform, e.RealtimeTrack, e.Cancelled, e.Additional); err != nil {
			return fmt.Errorf("upserting journey event %d: %w", e.EventIndex, err)
		}
	}

	return tx.Commit(ctx)
}

// SaveVehicleSequence inserts or updates a journey's vehicle sequence,
// resolving conflicts on the unique resolve-key per spec.md §4.5's
// continuation-races tolerance note. The resolve key, not journey_id, is the
// conflict target: spec.md §§96/244/256 carry a consist forward by
// resolve-key across runs of the same scheduled slot, so a later run's row
// (a distinct journey_id) supersedes the earlier one's in place rather than
// inserting a second row that would collide with the resolve-key unique
// index anyway.
func (s *Store) SaveVehicleSequence(ctx context.Context, v model.VehicleSequence) error {
	railcars, err := json.Marshal(v.Railcars)
	if err != nil {
		return fmt.Errorf("persistence: marshalling railcars: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vehicle_sequences (id, journey_id, status, railcars, sequence_resolve_key, update_time)
		VALUES ($1,$2,$3,$4,$5,now())
		ON CONFLICT (sequence_resolve_key) DO UPDATE SET
			journey_id = excluded.journey_id,
			status = excluded.status,
			railcars = excluded.railcars,
			update_time = now()
	`, v.ID, v.JourneyID, v.Status, railcars, v.SequenceResolveKey)
	if err != nil {
		return fmt.Errorf("persistence: saving vehicle sequence for journey %s: %w", v.JourneyID, err)
	}
	return nil
}

// DeleteOlderThan batches deletion of journeys (and their cascaded events)
// whose update_time predates cutoff, at most batchSize per DELETE statement,
// repeating until a batch comes back short — the
// pattern is grounded in the teacher's internal/db/cleanup.go retention
// sweep, generalized from a single DELETE per table to a bounded batch loop
// so one housekeeping tick cannot hold a long-running lock (spec.md §4.8).
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	deleted := 0
	for {
		tag, err := s.pool.Exec(ctx, `
			DELETE FROM journeys WHERE id IN (
				SELECT id FROM journeys WHERE update_time < $1 ORDER BY update_time ASC LIMIT $2
			)
		`, cutoff, batchSize)
		if err != nil {
			return deleted, fmt.Errorf("persistence: batch-deleting stale journeys: %w", err)
		}
		n := int(tag.RowsAffected())
		deleted += n
		if n < batchSize {
			return deleted, nil
		}
	}
}
