package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/games"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	roundsrepo "github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/internal/settlement/repo"
	"github.com/radieske/minigame-settlement/internal/settlement/service"
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

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 20)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	writer := kafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()
	queue := jobqueue.New(writer)

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicSettle, "minigame-settlement")
	defer reader.Close()

	catalog := games.Default()

	jm := metrics.NewJobs(prometheus.DefaultRegisterer, "settlement")
	wagers := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_wagers_total", Help: "apostas liquidadas por status"}, []string{"status"})
	prometheus.MustRegister(wagers)

	proc := &service.Processor{
		Log:          log,
		Catalog:      catalog,
		Store:        repo.NewPostgres(pg),
		Results:      roundsrepo.NewResults(pg, catalog),
		Rounds:       roundsrepo.NewRegistry(pg),
		Clock:        roundclock.New(cfg.RoundLocation()),
		Queue:        queue,
		DelayedTopic: cfg.TopicDelayedPublish,
		NotifyDelay:  10 * time.Second,
		OnWager:      func(status string) { wagers.WithLabelValues(status).Inc() },
	}

	// jobs esgotados vão para a DLQ; o próximo scan_all do jogo ainda recupera as apostas
	runner := &jobqueue.Runner{
		Log:        log,
		Reader:     reader,
		Queue:      queue,
		Topic:      cfg.TopicSettle,
		DLQTopic:   cfg.TopicSettleDLQ,
		Handlers:   map[jobs.Kind]jobqueue.Handler{jobs.KindSettle: proc.Handle},
		OnConsumed: func(kind string) { jm.Consumed.WithLabelValues(kind).Inc() },
		OnRetried:  func() { jm.Retried.Inc() },
		OnDead:     func() { jm.Dead.Inc() },
		OnError:    func(stage string) { jm.Errors.WithLabelValues(stage).Inc() },
	}

	metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.HealthCheck{Name: "pg", Check: pg.PingContext})

	log.Info("settlement-worker started", zap.String("topic", cfg.TopicSettle))
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("runner stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}
