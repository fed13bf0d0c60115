package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/flightrec/internal/aircraft"
	"github.com/yegors/flightrec/internal/api"
	"github.com/yegors/flightrec/internal/cache"
	"github.com/yegors/flightrec/internal/config"
	"github.com/yegors/flightrec/internal/flight"
	"github.com/yegors/flightrec/internal/opensky"
	"github.com/yegors/flightrec/internal/recommender"
	"github.com/yegors/flightrec/internal/storage/redis"
	"github.com/yegors/flightrec/internal/storage/sqlite"
	"github.com/yegors/flightrec/internal/weather"
	"github.com/yegors/flightrec/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	hours := flag.Float64("hours", 0, "Look-back window in hours, overrides search.time_interval_h")
	format := flag.String("format", "text", "Report format: text or json")
	serve := flag.Bool("serve", false, "Serve reports over HTTP instead of printing one")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *hours > 0 {
		cfg.Search.TimeIntervalH = *hours
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *format != "text" && *format != "json" {
		fmt.Fprintf(os.Stderr, "Invalid format: %s\n", *format)
		os.Exit(1)
	}

	// Create logger; stdout is reserved for the report
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, *serve, *format, log)
	stop()
	if err != nil {
		log.Error("Fatal error", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	_ = log.Sync()
}

func run(ctx context.Context, cfg *config.Config, serve bool, format string, log *logger.Logger) error {
	log.Info("Starting flightrec",
		logger.String("version", Version),
		logger.String("storage", cfg.Storage.Type),
		logger.Float64("interval_hours", cfg.Search.TimeIntervalH),
	)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Error closing cache store", logger.Error(err))
		}
	}()
	loader := cache.NewLoader(store)

	sky := opensky.NewClient(cfg.OpenSky.BaseURL, cfg.OpenSky.CredentialsPath, cfg.OpenSky.Policy(), log)

	var weatherResolver *weather.Resolver
	if cfg.Rank.Weather != nil {
		weatherResolver = weather.NewResolver(weather.NewClient(cfg.Weather, log), loader, cfg.Weather.CacheExpiry(), log)
	}

	rec := recommender.New(
		flight.NewFetcher(sky, loader, cfg.Cache.EmptySegments(), log),
		aircraft.NewResolver(sky, loader, log),
		weatherResolver,
		recommender.OptionsFromConfig(cfg),
		log,
	)

	if serve {
		return serveHTTP(ctx, cfg, rec, log)
	}

	res, err := rec.Run(ctx)
	if err != nil {
		return err
	}
	if format == "json" {
		return res.WriteJSON(os.Stdout)
	}
	return res.WriteText(os.Stdout)
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (cache.Store, error) {
	switch cfg.Storage.Type {
	case config.StorageRedis:
		return redis.NewCacheStorage(ctx, redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Prefix:   cfg.Storage.RedisPrefix,
		}, log)
	case config.StorageMemory:
		log.Warn("Using in-memory cache; nothing is kept between runs")
		return cache.NewMemoryStore(), nil
	default:
		s, err := sqlite.NewCacheStorage(cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if n, err := s.Purge(ctx); err != nil {
			log.Warn("Failed to purge expired cache entries", logger.Error(err))
		} else if n > 0 {
			log.Info("Purged expired cache entries", logger.Int64("count", n))
		}
		return s, nil
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, rec *recommender.Recommender, log *logger.Logger) error {
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(rec, log),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	log.Info("HTTP server shutdown complete")
	return nil
}
