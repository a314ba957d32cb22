package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/bettor-bot/client"
	"github.com/radieske/craps-oracle-table/internal/bettor-bot/service"
	"github.com/radieske/craps-oracle-table/internal/shared/config"
	"github.com/radieske/craps-oracle-table/internal/shared/logger"
	"github.com/radieske/craps-oracle-table/internal/shared/metrics"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	placed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bettor_bot_bets_placed_total", Help: "apostas aceitas por tipo"}, []string{"bet_type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bettor_bot_bets_rejected_total", Help: "apostas recusadas por motivo"}, []string{"reason"})
	sitOuts := prometheus.NewCounter(prometheus.CounterOpts{Name: "bettor_bot_sit_outs_total", Help: "janelas em que um bot ficou de fora"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bettor_bot_settled_total", Help: "apostas decididas"}, []string{"result"})
	prometheus.MustRegister(placed, rejected, sitOuts, settled)

	seed := cfg.Bot.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tc := client.New(cfg.Bot.TableURL)
	bettor := service.NewBettor(cfg.Bot.BettorIDs, cfg.Bot.BetAmount, cfg.Bot.InitialDeposit, cfg.Bot.SitOutRatio, seed, tc, log.Named("bettor"))
	bettor.OnPlaced = func(t string) { placed.WithLabelValues(t).Inc() }
	bettor.OnRejected = func(r string) { rejected.WithLabelValues(r).Inc() }
	bettor.OnSitOut = sitOuts.Inc
	bettor.OnSettled = func(won bool) {
		if won {
			settled.WithLabelValues("won").Inc()
			return
		}
		settled.WithLabelValues("lost").Inc()
	}

	// table-service pode subir depois do bot
	for {
		fctx, done := context.WithTimeout(ctx, 5*time.Second)
		err := bettor.Fund(fctx)
		done()
		if err == nil {
			break
		}
		log.Warn("initial deposit failed, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log)

	ws := &service.WSClient{
		URL:     cfg.Bot.TableWSURL,
		TableID: cfg.Game.TableID,
		Log:     log.Named("ws"),
		Handle:  bettor.HandleEvent,
	}
	log.Info("bettor-bot started", zap.Strings("bettors", cfg.Bot.BettorIDs), zap.String("table_id", cfg.Game.TableID))
	ws.Start(ctx)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("bettor-bot stopped")
}
