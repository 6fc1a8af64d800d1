// Package persistence implements the durable store (C9) described in
// spec.md §6: Postgres tables for servers, dispatch posts, journeys,
// journey events and vehicle sequences, with a covering partial index over
// the playable (in_playable_border) events of each journey. The
// transaction-per-write, prepared-upsert-with-ON-CONFLICT shape is carried
// from the teacher's internal/db/writer.go, generalized from SQLite's
// `?`/`datetime('now')` dialect to pgx's `$n`/`now()` and from one flat
// table to the five normalised entities spec.md §3 describes.
package persistence

// Schema is the DDL applied by EnsureSchema. JSONB columns hold Tags,
// ImageURLs, DispatcherIDs and the railcar list; the partial index on
// journey_events covers the ordered events of a journey that lie inside the
// playable border, with the columns cancellation inference reads.
// Deleting a journey cascades to its events and vehicle sequences.
const Schema = `
CREATE TABLE IF NOT EXISTS servers (
	id                uuid PRIMARY KEY,
	foreign_id        text NOT NULL UNIQUE,
	code              text NOT NULL,
	region            text NOT NULL,
	scenery           text NOT NULL DEFAULT '',
	utc_offset_hours  integer NOT NULL DEFAULT 0,
	spoken_language   text NOT NULL DEFAULT '',
	tags              jsonb NOT NULL DEFAULT '[]',
	deleted           boolean NOT NULL DEFAULT false,
	registered_since  timestamptz NOT NULL,
	update_time       timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dispatch_posts (
	id           uuid PRIMARY KEY,
	foreign_id   text NOT NULL UNIQUE,
	server_id    uuid NOT NULL REFERENCES servers(id),
	point_id     uuid NOT NULL,
	latitude     double precision NOT NULL,
	longitude    double precision NOT NULL,
	difficulty   integer NOT NULL DEFAULT 0,
	image_urls   jsonb NOT NULL DEFAULT '[]',
	dispatcher_ids jsonb NOT NULL DEFAULT '[]',
	deleted      boolean NOT NULL DEFAULT false,
	update_time  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_dispatch_posts_server ON dispatch_posts(server_id) WHERE NOT deleted;

CREATE TABLE IF NOT EXISTS journeys (
	id                      uuid PRIMARY KEY,
	server_id               uuid NOT NULL REFERENCES servers(id),
	foreign_run_id          text NOT NULL,
	first_seen_time         timestamptz,
	last_seen_time          timestamptz,
	cancelled               boolean NOT NULL DEFAULT false,
	continuation_journey_id uuid REFERENCES journeys(id),
	checksum                text NOT NULL DEFAULT '',
	update_time             timestamptz NOT NULL DEFAULT now(),
	UNIQUE (server_id, foreign_run_id)
);

CREATE TABLE IF NOT EXISTS journey_events (
	id                 uuid PRIMARY KEY,
	journey_id         uuid NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
	event_index        integer NOT NULL,
	event_type         text NOT NULL,
	point_id           uuid NOT NULL,
	in_playable_border boolean NOT NULL DEFAULT false,
	scheduled_time     timestamptz NOT NULL,
	realtime_time      timestamptz,
	realtime_time_type text NOT NULL DEFAULT 'SCHEDULE',
	transport          jsonb NOT NULL,
	stop_type          text NOT NULL,
	scheduled_platform text,
	scheduled_track    text,
	realtime_platform  text,
	realtime_track     text,
	cancelled          boolean NOT NULL DEFAULT false,
	additional         boolean NOT NULL DEFAULT false,
	UNIQUE (journey_id, event_index)
);
CREATE INDEX IF NOT EXISTS idx_journey_events_cancellation_inference
	ON journey_events(journey_id, event_index) INCLUDE (id, scheduled_time, cancelled, realtime_time_type)
	WHERE in_playable_border = TRUE;

CREATE TABLE IF NOT EXISTS vehicle_sequences (
	id                   uuid PRIMARY KEY,
	journey_id           uuid NOT NULL REFERENCES journeys(id) ON DELETE CASCADE,
	status               text NOT NULL,
	railcars             jsonb NOT NULL DEFAULT '[]',
	sequence_resolve_key text NOT NULL,
	update_time          timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_vehicle_sequences_journey ON vehicle_sequences(journey_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicle_sequences_resolve_key ON vehicle_sequences(sequence_resolve_key);
`
