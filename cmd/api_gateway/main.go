// cmd/api_gateway serves backtests over HTTP and WebSocket, plus /metrics and
// /healthz on a separate listener.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bandrebalance/config"
	"bandrebalance/internal/backtest"
	"bandrebalance/internal/gateway"
	"bandrebalance/internal/logger"
	"bandrebalance/internal/metrics"
	"bandrebalance/internal/store/redis"
	sqlitestore "bandrebalance/internal/store/sqlite"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[api_gateway] starting...")

	cfg := config.Load()
	cfg.LogSummary()
	logger.Init("api_gateway", logger.ParseLevel(cfg.LogLevel))

	defaults := backtest.DefaultParams()
	if cfg.StrategyFile != "" {
		sf, err := config.LoadStrategy(cfg.StrategyFile)
		if err != nil {
			log.Fatalf("[api_gateway] %v", err)
		}
		if defaults, err = sf.Params(); err != nil {
			log.Fatalf("[api_gateway] strategy %s: %v", cfg.StrategyFile, err)
		}
	}

	// Writer first: it creates the schema the reader queries.
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[api_gateway] sqlite open failed: %v", err)
	}
	writer.Close()
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[api_gateway] sqlite reader failed: %v", err)
	}
	defer reader.Close()

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := gateway.Deps{
		Bars:     reader,
		Runs:     reader,
		Metrics:  m,
		Defaults: defaults,
	}
	var rdb *goredis.Client
	if pub := connectRedis(ctx, cfg, m); pub != nil {
		defer pub.Close()
		deps.Live = pub
		deps.Publisher = pub
		rdb = pub.Client()
	}

	health := metrics.NewHealthStatus(cfg.RedisEnabled())
	health.StartLivenessChecker(ctx, rdb, reader.DB(), 10*time.Second)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, prometheus.DefaultGatherer, health)
	metricsSrv.Start()

	gw := gateway.New(deps)
	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: gw.Handler()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[api_gateway] serving at http://localhost%s", cfg.GatewayAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[api_gateway] server error: %v", err)
		}
	}()

	<-sigCh
	log.Println("[api_gateway] shutting down...")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	srv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}

// connectRedis returns the publisher for the configured Redis, or nil when
// Redis is disabled. An unreachable server does not disable it: the client
// is kept so the liveness checker can see it recover.
func connectRedis(ctx context.Context, cfg *config.Config, m *metrics.Metrics) *redis.Publisher {
	if !cfg.RedisEnabled() {
		return nil
	}
	pub := redis.Dial(redis.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		OnStateChange: func(from, to redis.State) {
			m.RedisCircuitBreakerState.Set(float64(to))
		},
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pub.Ping(pingCtx); err != nil {
		log.Printf("[api_gateway] WARNING: redis %s unreachable, will keep probing: %v", cfg.RedisAddr, err)
	} else {
		log.Printf("[api_gateway] redis connected at %s", cfg.RedisAddr)
	}
	return pub
}
