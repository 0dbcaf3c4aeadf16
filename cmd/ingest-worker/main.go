package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/bettingconfig"
	"github.com/radieske/minigame-settlement/internal/event-publisher/pubsub"
	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/round-ingest/cache"
	"github.com/radieske/minigame-settlement/internal/round-ingest/service"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
	sharedcache "github.com/radieske/minigame-settlement/internal/shared/cache"
	"github.com/radieske/minigame-settlement/internal/shared/config"
	"github.com/radieske/minigame-settlement/internal/shared/db"
	"github.com/radieske/minigame-settlement/internal/shared/jobqueue"
	"github.com/radieske/minigame-settlement/internal/shared/kafka"
	"github.com/radieske/minigame-settlement/internal/shared/logger"
	"github.com/radieske/minigame-settlement/internal/shared/metrics"
	"github.com/radieske/minigame-settlement/pkg/contracts/jobs"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 10)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	if kafka.DevEnv(cfg.Env) {
		topics := []string{cfg.TopicIngest, cfg.TopicSettle, cfg.TopicResultPublish, cfg.TopicDelayedPublish, cfg.TopicSettleDLQ}
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, topics, log); err != nil {
			log.Warn("ensure kafka topics", zap.Error(err))
		}
	}

	writer := kafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()
	queue := jobqueue.New(writer)

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicIngest, "minigame-ingest")
	defer reader.Close()

	catalog := games.Default()
	clock := roundclock.New(cfg.RoundLocation())

	// Métricas Prometheus do worker
	jm := metrics.NewJobs(prometheus.DefaultRegisterer, "ingest")
	created := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_rounds_created_total", Help: "rodadas criadas"}, []string{"game"})
	saved := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ingest_results_saved_total", Help: "resultados gravados"}, []string{"game"})
	prometheus.MustRegister(created, saved)

	timing := service.DefaultTiming()
	timing.SettleAttempts = cfg.JobMaxAttempts
	timing.SettleBackoff = cfg.JobBackoff

	events := pubsub.NewPublisher(pubsub.NewRedisBroadcaster(rdb), log)

	base := &service.Base{
		Log:            log,
		Clock:          clock,
		Catalog:        catalog,
		Registry:       repo.NewRegistry(pg),
		Results:        repo.NewResults(pg, catalog),
		Settings:       bettingconfig.NewStore(pg, rdb, cfg.SettingsTTL, log),
		Events:         events,
		Queue:          queue,
		SettleTopic:    cfg.TopicSettle,
		ResultTopic:    cfg.TopicResultPublish,
		Timing:         timing,
		OnRoundCreated: func(game string) { created.WithLabelValues(game).Inc() },
		OnResultsSaved: func(game string, n int) { saved.WithLabelValues(game).Add(float64(n)) },
	}
	svc := &service.Service{
		Log:        log,
		Catalog:    catalog,
		Scheduled:  service.NewScheduled(base),
		Continuous: service.NewContinuous(base, cache.NewWaitingRounds(rdb, cfg.WaitingRoundTTL)),
	}

	runner := &jobqueue.Runner{
		Log:        log,
		Reader:     reader,
		Queue:      queue,
		Topic:      cfg.TopicIngest,
		Handlers:   map[jobs.Kind]jobqueue.Handler{jobs.KindIngest: svc.Handle},
		OnConsumed: func(kind string) { jm.Consumed.WithLabelValues(kind).Inc() },
		OnRetried:  func() { jm.Retried.Inc() },
		OnDead:     func() { jm.Dead.Inc() },
		OnError:    func(stage string) { jm.Errors.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.HealthCheck{Name: "pg", Check: pg.PingContext},
		metrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	log.Info("ingest-worker started", zap.String("topic", cfg.TopicIngest))
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("runner stopped with error", zap.Error(err))
	}
	log.Info("ingest-worker stopped")
}
