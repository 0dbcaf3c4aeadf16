package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/minigame-settlement/internal/games"
	httpapi "github.com/radieske/minigame-settlement/internal/round-service/http"
	"github.com/radieske/minigame-settlement/internal/round-service/ws"
	"github.com/radieske/minigame-settlement/internal/roundclock"
	"github.com/radieske/minigame-settlement/internal/rounds/repo"
	"github.com/radieske/minigame-settlement/internal/shared/cache"
	"github.com/radieske/minigame-settlement/internal/shared/config"
	"github.com/radieske/minigame-settlement/internal/shared/db"
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

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, 10)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	catalog := games.Default()

	// gateway WebSocket: eventos chegam pelo Redis Pub/Sub publicado pelos workers
	hub := ws.NewHub(log, func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, rdb, hub, log)

	api := &httpapi.API{
		Catalog: catalog,
		Clock:   roundclock.New(cfg.RoundLocation()),
		Rounds:  repo.NewRegistry(pg),
		Results: repo.NewResults(pg, catalog),
	}

	metrics.StartMetricsServer(log, cfg.MetricsPort,
		metrics.HealthCheck{Name: "pg", Check: pg.PingContext},
		metrics.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(hub.HandleWS),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("round-service listening", zap.String("addr", srv.Addr), zap.String("paths", "/v1/games,/ws"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server error", zap.Error(err))
	}
	log.Info("round-service stopped")
}
