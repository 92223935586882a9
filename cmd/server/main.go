package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "librarium/metasearchservice/internal/api/http"
	"librarium/metasearchservice/internal/app"
	"librarium/metasearchservice/internal/domain"
	"librarium/metasearchservice/internal/metasearch"
	"librarium/metasearchservice/internal/metrics"
	"librarium/metasearchservice/internal/sources/bnf"
	"librarium/metasearchservice/internal/sources/googlebooks"
	"librarium/metasearchservice/internal/sources/openlibrary"
	"librarium/metasearchservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "library-metasearch")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "library-metasearch"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("globalTimeout", cfg.GlobalTimeout),
		slog.String("strategy", cfg.DefaultStrategy),
		slog.String("bnfEndpoint", cfg.BnFEndpoint),
		slog.String("googleBooksEndpoint", cfg.GoogleBooksEndpoint),
		slog.Bool("hasGoogleBooksKey", cfg.GoogleBooksAPIKey != ""),
		slog.String("openLibraryEndpoint", cfg.OpenLibraryEndpoint),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.Bool("cacheDisabled", cfg.CacheDisabled),
	)

	// Client timeouts stay above the per-source deadlines so cancellation is
	// always context-driven and visible in the metrics.
	bnfClient := &http.Client{Timeout: cfg.BnFTimeout + time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	googleClient := &http.Client{Timeout: cfg.GoogleBooksTimeout + time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	openLibraryClient := &http.Client{Timeout: cfg.OpenLibraryTimeout + time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}

	searchService := metasearch.NewService([]metasearch.SourceClient{
		bnf.NewClient(bnf.Config{
			Endpoint:  cfg.BnFEndpoint,
			UserAgent: cfg.UserAgent,
			Client:    bnfClient,
		}),
		googlebooks.NewClient(googlebooks.Config{
			Endpoint:  cfg.GoogleBooksEndpoint,
			UserAgent: cfg.UserAgent,
			APIKey:    cfg.GoogleBooksAPIKey,
			Client:    googleClient,
		}),
		openlibrary.NewClient(openlibrary.Config{
			Endpoint:  cfg.OpenLibraryEndpoint,
			CoversURL: cfg.OpenLibraryCovers,
			UserAgent: cfg.UserAgent,
			Client:    openLibraryClient,
		}),
	}, buildServiceOptions(cfg, logger)...)

	handler := apihttp.NewServer(searchService, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("metasearch service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.GlobalTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("metasearch service stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildServiceOptions(cfg app.Config, logger *slog.Logger) []metasearch.ServiceOption {
	opts := []metasearch.ServiceOption{
		metasearch.WithGlobalTimeout(cfg.GlobalTimeout),
		metasearch.WithSourceTimeout(domain.SourceBnF, cfg.BnFTimeout),
		metasearch.WithSourceTimeout(domain.SourceGoogleBooks, cfg.GoogleBooksTimeout),
		metasearch.WithSourceTimeout(domain.SourceOpenLibrary, cfg.OpenLibraryTimeout),
	}

	if kind, err := metasearch.ParseStrategyKind(cfg.DefaultStrategy); err == nil {
		opts = append(opts, metasearch.WithDefaultStrategy(kind))
	} else {
		logger.Warn("unknown strategy configured, using best-result", slog.String("strategy", cfg.DefaultStrategy))
	}

	if cfg.CacheDisabled {
		opts = append(opts, metasearch.WithCacheDisabled(true))
		return opts
	}

	if cfg.CacheTTL > 0 {
		opts = append(opts, metasearch.WithCacheTTL(cfg.CacheTTL))
	}

	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable, using in-memory cache only", slog.String("error", err.Error()))
			return opts
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		opts = append(opts, metasearch.WithRedisCache(metasearch.NewRedisCacheBackend(redisClient)))
	}

	return opts
}
