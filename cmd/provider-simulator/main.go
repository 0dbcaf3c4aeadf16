package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/games"
	simulator "github.com/radieske/minigame-settlement/internal/provider-simulator"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/shared/config"
	"github.com/radieske/minigame-settlement/internal/shared/jobqueue"
	"github.com/radieske/minigame-settlement/internal/shared/kafka"
	"github.com/radieske/minigame-settlement/internal/shared/logger"
	"github.com/radieske/minigame-settlement/internal/shared/metrics"
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

	if kafka.DevEnv(cfg.Env) {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, []string{cfg.TopicIngest}, log); err != nil {
			log.Warn("ensure kafka topics", zap.Error(err))
		}
	}

	writer := kafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()
	queue := jobqueue.New(writer)

	emitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "provider_sim_batches_total", Help: "lotes simulados enfileirados"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "provider_sim_errors_total", Help: "falhas ao enfileirar"})
	prometheus.MustRegister(emitted, failures)

	gen := simulator.NewGenerator(games.Default(), roundclock.New(cfg.RoundLocation()), time.Now().UnixNano())

	metrics.StartMetricsServer(log, cfg.MetricsPort)

	log.Info("provider simulator running", zap.String("topic", cfg.TopicIngest))

	// Gera o histórico de cada jogo e enfileira um lote por jogo a cada 3 segundos
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("provider simulator stopped")
			return
		case now := <-ticker.C:
			if err := gen.Emit(ctx, queue, cfg.TopicIngest, cfg.JobMaxAttempts, now); err != nil {
				log.Warn("emit simulated batches", zap.Error(err))
				failures.Inc()
				continue
			}
			emitted.Inc()
		}
	}
}
