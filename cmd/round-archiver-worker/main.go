package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/craps-oracle-table/internal/round-archiver/cache"
	"github.com/radieske/craps-oracle-table/internal/round-archiver/consumer"
	"github.com/radieske/craps-oracle-table/internal/round-archiver/pubsub"
	"github.com/radieske/craps-oracle-table/internal/round-archiver/repository"
	sharedcache "github.com/radieske/craps-oracle-table/internal/shared/cache"
	"github.com/radieske/craps-oracle-table/internal/shared/config"
	"github.com/radieske/craps-oracle-table/internal/shared/db"
	"github.com/radieske/craps-oracle-table/internal/shared/kafka"
	"github.com/radieske/craps-oracle-table/internal/shared/logger"
	"github.com/radieske/craps-oracle-table/internal/shared/metrics"
	"github.com/radieske/craps-oracle-table/pkg/contracts/events"
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

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	rcache := cache.NewRedisCache(redisClient, 10*time.Minute)
	repo := repository.NewPostgresRepo(pg)

	// consumer group round-archiver; DLQ para mensagens ilegíveis
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicTableEvents, "round-archiver")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicTableEventsDLQ)
	defer dlq.Close()

	// Métricas Prometheus
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_archiver_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_archiver_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_archiver_db_writes_total", Help: "eventos persistidos (history+current)"})
	dups := prometheus.NewCounter(prometheus.CounterOpts{Name: "round_archiver_duplicates_total", Help: "eventos já arquivados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "round_archiver_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, dups, errorsBy)

	// Broadcaster para o hub WS do table-service
	broadcaster := pubsub.NewRedisBroadcaster(redisClient, cfg.RedisPubSubChannel)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Repo:        repo,
		Cache:       rcache,
		DLQ:         dlq,
		OnConsumed:  consumed.Inc,
		OnCached:    cached.Inc,
		OnPersist:   persist.Inc,
		OnDuplicate: dups.Inc,
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },

		OnAfterPersist: func(ev events.TableEvent) {
			b, err := pubsub.Encode(ev)
			if err != nil {
				log.Warn("ws broadcast encode failed", zap.Error(err))
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			if err := broadcaster.Publish(ctx, b); err != nil {
				log.Warn("ws broadcast publish failed", zap.Error(err))
			}
		},
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log,
		metrics.Check{Name: "postgres", Fn: pg.PingContext},
		metrics.Check{Name: "redis", Fn: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	)
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("round-archiver started", zap.String("topic", cfg.TopicTableEvents))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
		return
	}
	log.Info("round-archiver stopped")
}
