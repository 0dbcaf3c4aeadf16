package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/minigame-settlement/internal/event-publisher/delayed"
	"github.com/radieske/minigame-settlement/internal/event-publisher/pubsub"
	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/internal/shared/cache"
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 5)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	writer := kafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()
	queue := jobqueue.New(writer)

	// round:result espera minutos pelo NotBefore; notificações esperam segundos.
	// Cada um tem tópico e consumer próprios para não enfileirar um atrás do outro.
	resultReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicResultPublish, "minigame-result-publisher")
	defer resultReader.Close()
	noteReader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicDelayedPublish, "minigame-publisher")
	defer noteReader.Close()

	catalog := games.Default()

	jm := metrics.NewJobs(prometheus.DefaultRegisterer, "publisher")
	published := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "publisher_events_published_total", Help: "eventos publicados no pub/sub"}, []string{"topic"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "publisher_events_failed_total", Help: "falhas de publicação (descartadas)"}, []string{"topic"})
	gaveUp := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "publisher_gave_up_total", Help: "jobs abandonados sem resultado"}, []string{"kind"})
	prometheus.MustRegister(published, failed, gaveUp)

	events := pubsub.NewPublisher(pubsub.NewRedisBroadcaster(rdb), log)
	events.OnPublished = func(topic string) { published.WithLabelValues(topic).Inc() }
	events.OnFailed = func(topic string) { failed.WithLabelValues(topic).Inc() }

	h := &delayed.Handlers{
		Log:      log,
		Catalog:  catalog,
		Results:  repo.NewResults(pg, catalog),
		Events:   events,
		OnGaveUp: func(kind string) { gaveUp.WithLabelValues(kind).Inc() },
	}

	// sem DLQ: publicação esgotada é só descartada
	runner := func(r jobqueue.Reader, topic string, handlers map[jobs.Kind]jobqueue.Handler) *jobqueue.Runner {
		return &jobqueue.Runner{
			Log:        log.With(zap.String("topic", topic)),
			Reader:     r,
			Queue:      queue,
			Topic:      topic,
			Handlers:   handlers,
			OnConsumed: func(kind string) { jm.Consumed.WithLabelValues(kind).Inc() },
			OnRetried:  func() { jm.Retried.Inc() },
			OnDead:     func() { jm.Dead.Inc() },
			OnError:    func(stage string) { jm.Errors.WithLabelValues(stage).Inc() },
		}
	}
	runners := []*jobqueue.Runner{
		runner(resultReader, cfg.TopicResultPublish, h.ResultMap()),
		runner(noteReader, cfg.TopicDelayedPublish, h.NotificationMap()),
	}

	metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.HealthCheck{Name: "pg", Check: pg.PingContext},
		metrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	log.Info("publish-worker started",
		zap.String("result_topic", cfg.TopicResultPublish),
		zap.String("notification_topic", cfg.TopicDelayedPublish),
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("runner stopped with error", zap.Error(err))
	}
	log.Info("publish-worker stopped")
}
