package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trainsim/sit-collector/internal/cache"
	"github.com/trainsim/sit-collector/internal/dirty"
	"github.com/trainsim/sit-collector/internal/dispatch"
	"github.com/trainsim/sit-collector/internal/ids"
	"github.com/trainsim/sit-collector/internal/model"
	"github.com/trainsim/sit-collector/internal/upstream"
)

// ServerRecord is the cached live view of one server, with a dirty-field
// group tracking the subset of spec.md §3's mutable server fields that the
// dispatcher needs sparse diffs for.
type ServerRecord struct {
	Server  model.Server
	version int64

	Fields         *dirty.FieldGroup
	Online         *dirty.Field[bool]
	ZoneOffset     *dirty.NullableField[string]
	UTCOffsetHours *dirty.Field[int]
	Scenery        *dirty.NullableField[string]
}

func newServerRecord(s model.Server) *ServerRecord {
	fields := dirty.NewFieldGroup()
	scenery := s.Scenery
	return &ServerRecord{
		Server:         s,
		Fields:         fields,
		Online:         dirty.NewField(fields, "online", true),
		ZoneOffset:     dirty.NewNullableField[string](fields, "zone_offset", nil),
		UTCOffsetHours: dirty.NewField(fields, "utc_offset_hours", s.UTCOffsetHours),
		Scenery:        dirty.NewNullableField[string](fields, "server_scenery", &scenery),
	}
}

func (r *ServerRecord) Version() int64 { return r.version }

// ServerRecordKeys is the cache.KeyFuncs for ServerRecord, keyed by the
// upstream foreign id (the identity a listing tick actually reports).
var ServerRecordKeys = cache.KeyFuncs[*ServerRecord]{
	PrimaryKey: func(r *ServerRecord) string { return r.Server.ForeignID },
}

// ServerStore is the persistence surface the server collector writes to.
type ServerStore interface {
	UpsertServer(ctx context.Context, v model.Server) error
}

// ServerCollector polls the server listing and per-server time offset,
// diffs against the cache, persists changes and publishes update frames.
type ServerCollector struct {
	client *upstream.Client
	cache  *cache.Cache[*ServerRecord]
	store  ServerStore
	bus    *dispatch.Bus[*dispatch.ServerUpdateFrame]
	broker *dispatch.Broker
	log    zerolog.Logger
}

// NewServerCollector builds a server collector.
func NewServerCollector(client *upstream.Client, c *cache.Cache[*ServerRecord], store ServerStore, bus *dispatch.Bus[*dispatch.ServerUpdateFrame], broker *dispatch.Broker, log zerolog.Logger) *ServerCollector {
	return &ServerCollector{client: client, cache: c, store: store, bus: bus, broker: broker, log: log}
}

// Tick fetches the server listing and reconciles every entry.
func (c *ServerCollector) Tick(ctx context.Context) error {
	servers, err := c.client.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("collector: listing servers: %w", err)
	}

	for _, dto := range servers {
		if err := c.reconcileOne(ctx, dto); err != nil {
			c.log.Error().Err(err).Str("server", dto.Code).Msg("server reconciliation failed, skipping object")
			continue // isolate per-object failures per spec.md §9
		}
	}
	return nil
}

func (c *ServerCollector) reconcileOne(ctx context.Context, dto upstream.ServerDTO) error {
	rec, found := c.cache.FindPrimary(dto.ID)
	if !found {
		id := ids.ServerID(dto.ID)
		registeredSince, err := ids.ForeignIDTimestamp(dto.ID)
		if err != nil {
			registeredSince = time.Time{}
		}
		rec = newServerRecord(model.Server{
			ID:              id,
			ForeignID:       dto.ID,
			Code:            dto.Code,
			Region:          model.Region(dto.Region),
			RegisteredSince: registeredSince,
		})
		c.cache.UpdateLocal(rec)
	}

	rec.Online.Set(dto.IsOnline)
	rec.Scenery.SetIfNullable(&dto.Scenery)
	rec.Server.Code = dto.Code
	rec.Server.Region = model.Region(dto.Region)
	rec.Server.SpokenLanguage = dto.SpokenLanguage
	rec.Server.Tags = dto.Tags
	rec.Server.Scenery = dto.Scenery
	rec.Server.Deleted = false
	rec.Server.UpdateTime = time.Now().UTC()

	if offset, err := c.client.GetTimeOffset(ctx, dto.Code); err == nil {
		rec.ZoneOffset.SetIfNullable(&offset.ZoneOffset)
		rec.UTCOffsetHours.Set(offset.UTCOffsetHours)
		rec.Server.UTCOffsetHours = offset.UTCOffsetHours
	}

	isDirty, changes := rec.Fields.ConsumeDirty()
	rec.version++

	if err := c.store.UpsertServer(ctx, rec.Server); err != nil {
		return fmt.Errorf("persisting server %s: %w", dto.ID, err)
	}

	if !isDirty {
		return nil
	}

	updateType := dispatch.UpdateTypeUpdate
	if !found {
		updateType = dispatch.UpdateTypeAdd
	}
	frame := dispatch.BuildServerFrame(rec.Server.ID.String(), updateType, changes)
	c.bus.Publish(frame)
	if payload, err := dispatch.Marshal(frame); err == nil {
		c.broker.Publish(dispatch.KindServerUpdate, rec.Server.ID.String(), "", payload)
	}
	return nil
}
