// Package housekeeping implements the daily retention sweep (C8) described
// in spec.md §4.8: delete journeys (and their events, via cascade) older
// than the retention window, in bounded batches, on a cron schedule. The
// batch-delete-and-log shape is carried from the teacher's
// internal/db/cleanup.go retention job, generalized from SQLite's
// datetime()-clause per-table deletes to a single bounded-batch loop over
// Postgres, and from an ad hoc ticker to a real cron expression via
// robfig/cron/v3 (spec.md §5's "0 0 5 * * *" daily-at-05:00 schedule).
package housekeeping

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Store is the subset of persistence.Store housekeeping needs.
type Store interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}

// Job runs the retention sweep on a cron schedule.
type Job struct {
	store     Store
	retention time.Duration
	batchSize int
	log       zerolog.Logger
	cron      *cron.Cron
}

// New builds a housekeeping job. schedule is a 6-field cron expression with
// a leading seconds field (e.g. "0 0 5 * * *").
func New(store Store, retention time.Duration, batchSize int, schedule string, log zerolog.Logger) (*Job, error) {
	j := &Job{store: store, retention: retention, batchSize: batchSize, log: log, cron: cron.New(cron.WithSeconds())}
	if _, err := j.cron.AddFunc(schedule, j.runOnce); err != nil {
		return nil, err
	}
	return j, nil
}

// Run starts the cron scheduler and blocks until ctx is cancelled.
func (j *Job) Run(ctx context.Context) {
	j.cron.Start()
	<-ctx.Done()
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
}

// RunNow executes the sweep immediately, outside the cron schedule — useful
// for an operator-triggered cleanup or a startup catch-up run.
func (j *Job) RunNow() {
	j.runOnce()
}

func (j *Job) runOnce() {
	cutoff := time.Now().Add(-j.retention)
	deleted, err := j.store.DeleteOlderThan(context.Background(), cutoff, j.batchSize)
	if err != nil {
		j.log.Error().Err(err).Msg("housekeeping sweep failed")
		return
	}
	if deleted > 0 {
		j.log.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("housekeeping sweep complete")
	}
}
