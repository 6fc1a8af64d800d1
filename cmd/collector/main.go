// Command collector is the composition root wiring the upstream client,
// reference data, versioned cache, journey reconciler, dirty-field tracker,
// update dispatcher, persistence store and housekeeping job into one
// service, per spec.md §2's tick pipeline. The phased startup, ticker-
// goroutine-per-loop and signal-driven graceful shutdown are carried
// directly from the teacher's cmd/poller/main.go, generalized from a single
// poll loop to one goroutine per C4 collector plus the C8 cron.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/trainsim/sit-collector/internal/cache"
	"github.com/trainsim/sit-collector/internal/collector"
	"github.com/trainsim/sit-collector/internal/config"
	"github.com/trainsim/sit-collector/internal/dispatch"
	"github.com/trainsim/sit-collector/internal/housekeeping"
	"github.com/trainsim/sit-collector/internal/journey"
	"github.com/trainsim/sit-collector/internal/logging"
	"github.com/trainsim/sit-collector/internal/persistence"
	"github.com/trainsim/sit-collector/internal/refdata"
	"github.com/trainsim/sit-collector/internal/upstream"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local") // Overload forces override of existing values

	log := logging.New("collector")
	log.Info().Msg("starting sit collector service")

	cfg := config.Load()

	// ── Phase 1: reference data ──────────────────────────────────────────
	points, err := refdata.LoadPoints(cfg.PointsBundlePath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading points bundle")
	}
	signals, err := refdata.LoadSignals(cfg.SignalsBundlePath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading signals bundle")
	}
	railcars, err := refdata.LoadRailcars(cfg.RailcarsBundlePath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading railcars bundle")
	}
	log.Info().Msg("reference data loaded")

	// ── Phase 2: persistence ─────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to database")
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensuring database schema")
	}
	log.Info().Msg("database ready")

	// ── Phase 3: cache, reconciler, dispatcher ──────────────────────────
	var remote cache.Remote
	if redisRemote, err := cache.NewRedisRemote(cfg.RemoteCacheURL); err != nil {
		log.Warn().Err(err).Msg("remote cache unavailable, continuing local-only")
	} else {
		remote = redisRemote
		defer redisRemote.Close()
	}

	serverCache := cache.New[*collector.ServerRecord](collector.ServerRecordKeys, cfg.CacheTTL, remote)
	postCache := cache.New[*collector.DispatchPostRecord](collector.DispatchPostRecordKeys, cfg.CacheTTL, remote)
	journeyCache := cache.New[*journey.Record](journey.RecordKeys, cfg.CacheTTL, remote)

	go serverCache.RunSweeper(ctx)
	go postCache.RunSweeper(ctx)
	go journeyCache.RunSweeper(ctx)

	reconciler := journey.New(journeyCache, cfg.GoneThreshold, 2*time.Minute, log)

	broker, err := dispatch.DialBroker(cfg.BrokerURL, cfg.BrokerReconnectWait, cfg.BrokerMaxReconnectWait, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to broker")
	}
	defer broker.Close()

	serverBus := dispatch.NewBus[*dispatch.ServerUpdateFrame](log)
	postBus := dispatch.NewBus[*dispatch.DispatchPostUpdateFrame](log)
	journeyBus := dispatch.NewBus[*dispatch.JourneyUpdateFrame](log)

	// ── Phase 4: upstream client and collectors ─────────────────────────
	client := upstream.NewClient(cfg.PanelBaseURL, cfg.AWSBaseURL, cfg.RoutingBaseURL, cfg.ProfileBaseURL)

	serverCollector := collector.NewServerCollector(client, serverCache, store, serverBus, broker, log)
	postCollector := collector.NewDispatchPostCollector(client, postCache, points, store, postBus, broker, cfg.DispatchPostWriteInterval, log)
	trainCollector := collector.NewActiveTrainCollector(client, reconciler, points, signals, store, journeyBus, broker, log)
	timetableCollector := collector.NewTimetableCollector(client, reconciler, points, log)
	sequenceCollector := collector.NewVehicleSequenceCollector(client, reconciler, railcars, store, log)

	houseJob, err := housekeeping.New(store, time.Duration(cfg.RetentionWindowDays)*24*time.Hour, cfg.DeleteBatchSize, cfg.CleanupCron, log)
	if err != nil {
		log.Fatal().Err(err).Msg("building housekeeping job")
	}

	// ── Phase 4b: internal gRPC streaming surface ───────────────────────
	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("binding grpc listener")
	}
	grpcServer := grpc.NewServer()
	dispatch.NewServer(journeyBus, serverBus, postBus).Register(grpcServer)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	log.Info().Str("addr", cfg.GRPCListenAddr).Msg("grpc streaming surface listening")

	// ── Phase 5: run loops ───────────────────────────────────────────────
	go collector.Run(ctx, "server", cfg.ServerCollectorPeriod, log, serverCollector.Tick)

	go collector.Run(ctx, "dispatch-post", cfg.DispatchPostCollectorPeriod, log, func(tickCtx context.Context) error {
		for _, s := range serverCache.All() {
			if err := postCollector.TickServer(tickCtx, s.Server.ID, s.Server.Code); err != nil {
				log.Error().Err(err).Str("server", s.Server.Code).Msg("dispatch post tick failed")
			}
		}
		return nil
	})

	go collector.Run(ctx, "active-train", cfg.ActiveTrainCollectorPeriod, log, func(tickCtx context.Context) error {
		for _, s := range serverCache.All() {
			if err := trainCollector.TickServer(tickCtx, s.Server.ID, s.Server.ForeignID, s.Server.Code); err != nil {
				log.Error().Err(err).Str("server", s.Server.Code).Msg("active train tick failed")
			}
		}
		return nil
	})

	go collector.Run(ctx, "timetable", cfg.TimetableCollectorPeriod, log, func(tickCtx context.Context) error {
		for _, s := range serverCache.All() {
			if err := timetableCollector.TickServer(tickCtx, s.Server.ID, s.Server.ForeignID, s.Server.Code); err != nil {
				log.Error().Err(err).Str("server", s.Server.Code).Msg("timetable tick failed")
			}
		}
		return nil
	})

	go collector.Run(ctx, "vehicle-sequence", cfg.VehicleSequenceCollectorPeriod, log, func(tickCtx context.Context) error {
		for _, s := range serverCache.All() {
			if err := sequenceCollector.TickServer(tickCtx, s.Server.Code); err != nil {
				log.Error().Err(err).Str("server", s.Server.Code).Msg("vehicle sequence tick failed")
			}
		}
		return nil
	})

	go houseJob.Run(ctx)

	log.Info().Msg("sit collector service running")

	// ── Phase 6: graceful shutdown ───────────────────────────────────────
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	grpcServer.GracefulStop()
	cancel()
	time.Sleep(200 * time.Millisecond)
	log.Info().Msg("stopped")
}
