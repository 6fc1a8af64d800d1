package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trainsim/sit-collector/internal/cache"
	"github.com/trainsim/sit-collector/internal/dirty"
	"github.com/trainsim/sit-collector/internal/dispatch"
	"github.com/trainsim/sit-collector/internal/ids"
	"github.com/trainsim/sit-collector/internal/model"
	"github.com/trainsim/sit-collector/internal/refdata"
	"github.com/trainsim/sit-collector/internal/upstream"
)

// DispatchPostRecord is the cached live view of one dispatch post.
type DispatchPostRecord struct {
	Post    model.DispatchPost
	version int64

	Fields         *dirty.FieldGroup
	DispatcherIDs  *dirty.Field[string] // joined, sorted, comma-separated: equality-comparable dirty key for a slice
	LastWrittenAt time.Time
}

func newDispatchPostRecord(p model.DispatchPost) *DispatchPostRecord {
	fields := dirty.NewFieldGroup()
	return &DispatchPostRecord{
		Post:          p,
		Fields:        fields,
		DispatcherIDs: dirty.NewField(fields, "dispatcher_ids", ""),
	}
}

func (r *DispatchPostRecord) Version() int64 { return r.version }

// DispatchPostRecordKeys is the cache.KeyFuncs for DispatchPostRecord.
var DispatchPostRecordKeys = cache.KeyFuncs[*DispatchPostRecord]{
	PrimaryKey: func(r *DispatchPostRecord) string { return r.Post.ForeignID },
}

// DispatchPostStore is the persistence surface the collector writes to.
type DispatchPostStore interface {
	UpsertDispatchPost(ctx context.Context, v model.DispatchPost, dispatcherIDs []string) error
	MarkUncontainedDeleted(ctx context.Context, serverID uuid.UUID, seen []uuid.UUID) error
}

// DispatchPostCollector polls dispatch posts for every known server.
type DispatchPostCollector struct {
	client       *upstream.Client
	cache        *cache.Cache[*DispatchPostRecord]
	points       *refdata.Points
	store        DispatchPostStore
	bus          *dispatch.Bus[*dispatch.DispatchPostUpdateFrame]
	broker       *dispatch.Broker
	writeInterval time.Duration
	log          zerolog.Logger
}

// NewDispatchPostCollector builds a dispatch post collector. writeInterval is
// the maximum time a post's DB row may go stale when nothing observable has
// changed (spec.md §4.4: "writes to DB only every 5 minutes or on content
// change"); the dispatcher identity itself always lands in C3 immediately,
// regardless of this throttle.
func NewDispatchPostCollector(client *upstream.Client, c *cache.Cache[*DispatchPostRecord], points *refdata.Points, store DispatchPostStore, bus *dispatch.Bus[*dispatch.DispatchPostUpdateFrame], broker *dispatch.Broker, writeInterval time.Duration, log zerolog.Logger) *DispatchPostCollector {
	return &DispatchPostCollector{client: client, cache: c, points: points, store: store, bus: bus, broker: broker, writeInterval: writeInterval, log: log}
}

// TickServer fetches and reconciles the dispatch posts of one server.
func (c *DispatchPostCollector) TickServer(ctx context.Context, serverID uuid.UUID, serverCode string) error {
	posts, err := c.client.ListDispatchPosts(ctx, serverCode)
	if err == upstream.ErrNotModified {
		return nil
	}
	if err != nil {
		return fmt.Errorf("collector: listing dispatch posts for %s: %w", serverCode, err)
	}

	seen := make([]uuid.UUID, 0, len(posts))
	for _, dto := range posts {
		id, err := c.reconcileOne(ctx, serverID, dto)
		if err != nil {
			c.log.Error().Err(err).Str("post", dto.ID).Msg("dispatch post reconciliation failed, skipping object")
			continue
		}
		seen = append(seen, id)
	}

	if err := c.store.MarkUncontainedDeleted(ctx, serverID, seen); err != nil {
		return fmt.Errorf("collector: marking absent dispatch posts deleted: %w", err)
	}
	return nil
}

func (c *DispatchPostCollector) reconcileOne(ctx context.Context, serverID uuid.UUID, dto upstream.DispatchPostDTO) (uuid.UUID, error) {
	rec, found := c.cache.FindPrimary(dto.ID)
	id := ids.DispatchPostID(dto.ID)
	if !found {
		pointID := uuid.Nil
		if p, ok := c.points.ByName(dto.PointName); ok {
			pointID = p.ID
		}
		rec = newDispatchPostRecord(model.DispatchPost{ID: id, ForeignID: dto.ID, ServerID: serverID, PointID: pointID})
		c.cache.UpdateLocal(rec)
	}

	rec.Post.Latitude = dto.Lat
	rec.Post.Longitude = dto.Lon
	rec.Post.Difficulty = dto.Difficulty
	rec.Post.ImageURLs = dto.ImageURLs
	rec.Post.Deleted = false

	sorted := append([]string(nil), dto.DispatcherIDs...)
	sort.Strings(sorted)
	rec.DispatcherIDs.Set(joinIDs(sorted))

	isDirty, _ := rec.Fields.ConsumeDirty()
	rec.version++

	now := time.Now().UTC()
	stale := rec.LastWrittenAt.IsZero() || now.Sub(rec.LastWrittenAt) >= c.writeInterval
	if isDirty || stale {
		if err := c.store.UpsertDispatchPost(ctx, rec.Post, dto.DispatcherIDs); err != nil {
			return id, fmt.Errorf("persisting dispatch post %s: %w", dto.ID, err)
		}
		rec.LastWrittenAt = now
	}

	if isDirty {
		updateType := dispatch.UpdateTypeUpdate
		if !found {
			updateType = dispatch.UpdateTypeAdd
		}
		frame := dispatch.BuildDispatchPostFrame(id.String(), serverID.String(), updateType, dto.DispatcherIDs, true)
		c.bus.Publish(frame)
		if payload, err := dispatch.Marshal(frame); err == nil {
			c.broker.Publish(dispatch.KindDispatchPostUpdate, serverID.String(), id.String(), payload)
		}
	}
	return id, nil
}

func joinIDs(sortedIDs []string) string {
	out := ""
	for i, id := range sortedIDs {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
