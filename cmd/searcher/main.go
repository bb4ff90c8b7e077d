package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/corpus"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-core/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"num_shards", cfg.Index.NumShards,
		"parallel", cfg.Search.Parallel,
	)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzer, err := tokenizer.ByName(cfg.Index.Analyzer)
	if err != nil {
		return err
	}
	search.SetMaxClauseCount(cfg.Search.MaxClauseCount)

	shards, err := corpus.Load(cfg.Index.CorpusPath, corpus.Options{
		NumShards:     cfg.Index.NumShards,
		Analyzer:      analyzer,
		KeywordFields: cfg.Index.KeywordFields,
	})
	if err != nil {
		return err
	}

	caches, err := search.NewCacheContext(cfg.Search.FieldCacheSize, cfg.Search.ComparatorCacheSize)
	if err != nil {
		return err
	}
	subs := make([]search.Searchable, len(shards.Readers))
	for i, r := range shards.Readers {
		s, err := search.NewIndexSearcher(r, search.WithCacheContext(caches))
		if err != nil {
			return fmt.Errorf("opening shard %d: %w", i, err)
		}
		subs[i] = s
	}
	var engine search.Searchable
	if cfg.Search.Parallel {
		engine, err = search.NewParallelMultiSearcher(subs...)
	} else {
		engine, err = search.NewMultiSearcher(subs...)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Warn("closing shards", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCacheCollector("search", func() map[string]metrics.CacheCounts {
			stats := caches.Stats()
			return map[string]metrics.CacheCounts{
				"field_values": {Hits: stats.Fields.Hits, Misses: stats.Fields.Misses, Entries: stats.Fields.Entries},
				"comparators":  {Hits: stats.Comparators.Hits, Misses: stats.Comparators.Misses, Entries: stats.Comparators.Entries},
			}
		}),
	)
	m := metrics.New(reg)
	m.ActiveShards.Set(float64(len(subs)))
	for i, n := range shards.Counts {
		m.ShardDocCount.WithLabelValues(strconv.Itoa(i)).Set(float64(n))
	}

	resultCache, redisClient := connectCache(ctx, cfg, m)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var collector *analytics.Collector
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, analytics.Options{
			OnDrop: m.AnalyticsEventsDropped.Inc,
		})
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.SearchEvents)
	} else {
		slog.Info("no kafka brokers configured, search analytics disabled")
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(context.Context) health.ComponentHealth {
		if engine.MaxDoc() == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "index is empty"}
		}
		return health.Up(fmt.Sprintf("%d shards, %d docs", len(subs), engine.MaxDoc()))
	})
	if redisClient != nil {
		checker.RegisterOptional("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.Down(err)
			}
			return health.Up(resultCache.Stats().BreakerState)
		})
	}

	h, err := handler.New(engine, handler.Options{
		DefaultField: cfg.Search.DefaultField,
		Analyzer:     analyzer,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
		ShardCount:   len(subs),
		Cache:        resultCache,
		Collector:    collector,
		Metrics:      m,
		EngineStats:  caches.Stats,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit.RequestsPerSecond > 0 {
		limiter, err := middleware.NewClientLimiter(cfg.Server.RateLimit)
		if err != nil {
			return err
		}
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown error", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr, "docs", engine.MaxDoc())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// connectCache opens the Redis result cache. The service runs without one
// when caching is disabled or Redis stays unreachable.
func connectCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*cache.ResultCache, *pkgredis.Client) {
	if !cfg.Cache.Enabled {
		slog.Info("result cache disabled")
		return nil, nil
	}
	var client *pkgredis.Client
	err := resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{MaxAttempts: cfg.Cache.ConnectAttempts}, func() error {
		var err error
		client, err = pkgredis.NewClient(ctx, cfg.Redis)
		return err
	})
	if err != nil {
		slog.Warn("redis unavailable, result caching disabled", "addr", cfg.Redis.Addr, "error", err)
		return nil, nil
	}

	breaker := resilience.NewCircuitBreaker("result-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Cache.FailureThreshold,
		SuccessThreshold: cfg.Cache.SuccessThreshold,
		OpenTimeout:      cfg.Cache.OpenTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	m.CircuitBreakerState.WithLabelValues(breaker.Name()).Set(float64(resilience.StateClosed))
	slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
	return cache.New(client, cfg.Cache, breaker), client
}
