package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	oraclesim "github.com/radieske/craps-oracle-table/internal/oracle-simulator"
	"github.com/radieske/craps-oracle-table/internal/shared/config"
	"github.com/radieske/craps-oracle-table/internal/shared/logger"
	"github.com/radieske/craps-oracle-table/internal/shared/metrics"
)

var (
	// Métricas Prometheus do simulador
	rollRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_sim_requests_total",
		Help: "Requisições de lançamento recebidas",
	})
	rollFulfilled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_sim_fulfilled_total",
		Help: "Requisições cumpridas",
	})
	pendingReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_sim_pending_reads_total",
		Help: "Leituras que ainda encontraram a requisição pendente",
	})
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(rollRequests, rollFulfilled, pendingReads)

	sim := oraclesim.New(cfg.Oracle.ServerSeed, cfg.Oracle.FulfillDelay, cfg.Oracle.NeverRatio, log)
	sim.OnRequest = rollRequests.Inc
	sim.OnFulfil = rollFulfilled.Inc
	sim.OnPending = pendingReads.Inc

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("oracle simulator running",
		zap.String("addr", srv.Addr),
		zap.Duration("fulfil_delay", cfg.Oracle.FulfillDelay),
		zap.Float64("never_ratio", cfg.Oracle.NeverRatio),
		zap.String("seed_hash", sim.SeedHash()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("public server error", zap.Error(err))
	}
}
