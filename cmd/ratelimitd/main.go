package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manenim/ratelimitd/pkg/config"
	"github.com/manenim/ratelimitd/pkg/limiter"
	"github.com/manenim/ratelimitd/pkg/metrics"
	"github.com/manenim/ratelimitd/pkg/obs"
	"github.com/manenim/ratelimitd/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := obs.SetupLogger("error")
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	logger := obs.SetupLogger(cfg.Observability.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counters := metrics.NewCounters()
	if err := counters.Register(reg); err != nil {
		logger.Fatal().Err(err).Msg("register counters")
	}

	store, err := newStore(cfg.Redis, metrics.NewStoreRecorder(reg))
	if err != nil {
		logger.Fatal().Err(err).Msg("configure bucket store")
	}
	defer store.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = store.Ping(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatal().Err(err).Str("url", cfg.Redis.URL).Msg("bucket store unreachable")
	}

	engine := limiter.NewEngine(store,
		limiter.WithPrefix(cfg.Redis.KeyPrefix),
		limiter.WithTimeout(cfg.Redis.Timeout()),
		limiter.WithTTL(cfg.Redis.TTL()),
		limiter.WithCounters(counters),
		limiter.WithLogger(logger),
	)

	srv := server.New(server.Options{
		Engine:           engine,
		Defaults:         toPolicy(cfg.Policy),
		LoadTestClientID: cfg.LoadTest.ClientID,
		LoadTest:         toPolicy(cfg.LoadTest.Policy),
		Logger:           logger,
		Registry:         reg,
		PrometheusPath:   cfg.Observability.PrometheusPath,
		MaxBodyBytes:     cfg.Server.MaxBody(),
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
	}

	go func() {
		logger.Info().
			Str("addr", httpSrv.Addr).
			Str("backend", cfg.Redis.Backend).
			Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("bye")
}

func newStore(cfg config.Redis, rec limiter.MetricsRecorder) (limiter.BucketStore, error) {
	if cfg.Backend == config.BackendMemory {
		return limiter.NewMemoryStore(), nil
	}
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	return limiter.NewRedisStore(redis.NewClient(opts), limiter.WithRecorder(rec)), nil
}

func toPolicy(p config.Policy) limiter.Policy {
	return limiter.Policy{
		Capacity:   p.Capacity,
		RefillRate: p.RefillRate,
		Requested:  p.Tokens,
	}
}
