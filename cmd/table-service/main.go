package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/craps-oracle-table/internal/game/ledger"
	"github.com/radieske/craps-oracle-table/internal/game/oracle"
	"github.com/radieske/craps-oracle-table/internal/game/scheduler"
	"github.com/radieske/craps-oracle-table/internal/game/table"
	"github.com/radieske/craps-oracle-table/internal/shared/cache"
	"github.com/radieske/craps-oracle-table/internal/shared/config"
	"github.com/radieske/craps-oracle-table/internal/shared/db"
	"github.com/radieske/craps-oracle-table/internal/shared/kafka"
	"github.com/radieske/craps-oracle-table/internal/shared/logger"
	"github.com/radieske/craps-oracle-table/internal/shared/metrics"
	thttp "github.com/radieske/craps-oracle-table/internal/table-service/http"
	"github.com/radieske/craps-oracle-table/internal/table-service/producer"
	"github.com/radieske/craps-oracle-table/internal/table-service/repo"
	"github.com/radieske/craps-oracle-table/internal/table-service/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	policy, err := oracle.ParsePendingPolicy(cfg.Game.PendingPolicy)
	if err != nil {
		log.Fatal("pending policy", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres (séries, lançamentos e carteiras)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis (broadcast para o WS)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers
	eventsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicTableEvents)
	defer eventsWriter.Close()
	betsWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer betsWriter.Close()
	publ := producer.NewKafkaPublisher(eventsWriter, betsWriter)

	// ledger
	var store ledger.Store = ledger.NewPostgres(pg)
	if cfg.Game.LedgerStore == "memory" {
		store = ledger.NewMemoryStore()
		log.Warn("ledger running in memory; balances are lost on restart")
	}
	ldg := ledger.New(store, cfg.Game.PayoutMultiplier, log.Named("ledger"))

	// oráculo
	var orc oracle.Oracle = oracle.NewHTTPClient(cfg.Oracle.URL)
	if cfg.Oracle.Mode == "local" {
		orc = oracle.NewLocalOracle(cfg.Oracle.ServerSeed, cfg.Oracle.LocalReadsLag)
	}
	source := oracle.NewSource(orc, log.Named("oracle"))

	// mesa + scheduler
	series := repo.NewPostgres(pg)
	tbl := table.New(cfg.Game.TableID, ldg)
	last, err := series.LastSeriesID(ctx, cfg.Game.TableID)
	if err != nil {
		log.Fatal("load last series", zap.Error(err))
	}
	tbl.Resume(last)

	gm := metrics.NewGame(prometheus.DefaultRegisterer)
	sched := scheduler.New(scheduler.Config{
		Interval:        cfg.Game.RollInterval,
		PollMaxAttempts: cfg.Game.PollMaxAttempts,
		PollInterval:    cfg.Game.PollInterval,
		BettingWindow:   cfg.Game.BettingWindow,
		Cooldown:        cfg.Game.SeriesCooldown,
		AutoOpen:        cfg.Game.AutoOpen,
		Policy:          policy,
		SubstituteSeed:  cfg.Game.SubstituteSeed,
	}, tbl, source, publ, series, log.Named("scheduler")).WithHooks(scheduler.Hooks{
		OnRoll:      gm.ObserveRoll,
		OnPending:   gm.ObservePending,
		OnSettled:   gm.ObserveSettled,
		OnTickError: gm.ObserveTickError,
		OnSkip:      gm.ObserveSkip,
	})

	// WS
	hub := ws.NewHub(log.Named("ws"), func(r *http.Request) bool { return true })
	hub.OnConnect = gm.WSClients.Inc
	hub.OnDisconnect = gm.WSClients.Dec
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)

	// HTTP público
	api := thttp.NewServer(log, tbl, sched, series, publ, hub.HandleWS)
	api.OnBetPlaced = func(t string) { gm.BetsPlaced.WithLabelValues(t).Inc() }
	api.OnBetRejected = func(r string) { gm.BetsRejected.WithLabelValues(r).Inc() }
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		metrics.Check{Name: "kafka", Fn: func(ctx context.Context) error { return kafka.Ping(ctx, cfg.KafkaBrokers) }},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("table-service listening", zap.String("addr", apiSrv.Addr), zap.String("table_id", tbl.ID))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("table-service stopped with error", zap.Error(err))
		return
	}
	log.Info("table-service stopped")
}
