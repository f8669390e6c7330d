package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nysage/atlas/internal/config"
	"github.com/nysage/atlas/internal/dbpool"
	"github.com/nysage/atlas/internal/districtassign"
	"github.com/nysage/atlas/internal/geocache"
	"github.com/nysage/atlas/internal/geocodepipeline"
	"github.com/nysage/atlas/internal/geocoding"
	"github.com/nysage/atlas/internal/httpapi"
	"github.com/nysage/atlas/internal/metrics"
	"github.com/nysage/atlas/internal/multimatch"
	"github.com/nysage/atlas/internal/pipeline"
	"github.com/nysage/atlas/internal/registry"
	"github.com/nysage/atlas/internal/shapefile"
	"github.com/nysage/atlas/internal/streetfile"
	"github.com/nysage/atlas/internal/usps"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Operational settings (provider chain, buffer sizes, proximity
	// threshold, default district strategy) are read once here, at startup.
	// The store keeps watching its file, but a later reload does not reach
	// the components built below from this snapshot.
	opStore := config.NewOperationalStore(cfg.OperationalConfigPath, logger)
	op := opStore.Snapshot()

	// Initialize the database connection pool.
	pool, err := dbpool.New(ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	// Build the geocoding provider registry: every registered provider type,
	// the operational default, fallback chain, and cacheable subset.
	providerRegistry, err := buildProviderRegistry(cfg, op, logger)
	if err != nil {
		log.Fatalf("Failed to build geocoding provider registry: %v", err)
	}

	reverseRegistry := registry.New[geocoding.Provider]()
	reverseRegistry.Register(string(geocoding.ProviderTypeNominatim), func() geocoding.Provider {
		return geocoding.NewNominatimProvider(logger)
	})
	reverseRegistry.RegisterDefault(string(geocoding.ProviderTypeNominatim), func() geocoding.Provider {
		return geocoding.NewNominatimProvider(logger)
	})

	cache := geocache.New(pool, logger, op.CacheBufferSize, appMetrics)
	geocoder := geocodepipeline.New(providerRegistry, cache, logger, op.BatchConcurrency, appMetrics)

	shapes := shapefile.New(pool, logger)
	streets := streetfile.New(pool, logger)
	assigner := districtassign.New(shapes, streets, logger, op.ProximityThreshold)
	resolver := multimatch.New(streets, shapes)

	var uspsSvc *usps.Service
	if cfg.USPSUserID != "" {
		uspsSvc = usps.New(http.DefaultClient, cfg.USPSUserID, cfg.USPSBaseURL, logger, appMetrics)
	}

	resolutionPipeline := pipeline.New(geocoder, assigner, resolver, shapes, uspsSvc, reverseRegistry, nil, logger, appMetrics)

	server := httpapi.New(resolutionPipeline, uspsSvc, pool, reg, logger)

	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	readTimeout, writeTimeout := 5*time.Second, 10*time.Second
	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		logger.InfoContext(ctx, "Starting HTTP API server", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorContext(ctx, "HTTP API server failed", "error", err)
		}
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(ctx, "HTTP API server shutdown failed", "error", err)
	}

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// buildProviderRegistry validates and registers every geocoding provider
// type the process knows how to construct, honoring the operational
// snapshot's default and fallback chain.
func buildProviderRegistry(cfg *config.Config, op *config.OperationalConfig, logger *slog.Logger) (*registry.Registry[geocoding.Provider], error) {
	configs := []geocoding.ProviderConfig{
		{Type: geocoding.ProviderTypeNominatim, Logger: logger},
	}
	if cfg.APIKey != "" {
		configs = append(configs,
			geocoding.ProviderConfig{Type: geocoding.ProviderTypeGoogle, APIKey: cfg.APIKey, RateLimit: 50, Logger: logger},
			geocoding.ProviderConfig{Type: geocoding.ProviderTypeMapQuest, APIKey: cfg.APIKey, RateLimit: 5, Logger: logger},
		)
	}

	defaultType := geocoding.ProviderType(op.DefaultProvider)
	if defaultType == "" {
		defaultType = geocoding.ProviderTypeNominatim
	}

	fallback := make([]geocoding.ProviderType, 0, len(op.FallbackChain))
	for _, name := range op.FallbackChain {
		fallback = append(fallback, geocoding.ProviderType(name))
	}

	cacheable := make([]geocoding.ProviderType, 0, len(op.CacheableProviders))
	for _, name := range op.CacheableProviders {
		cacheable = append(cacheable, geocoding.ProviderType(name))
	}
	if len(cacheable) == 0 {
		cacheable = []geocoding.ProviderType{defaultType}
	}

	return geocoding.BuildRegistry(configs, defaultType, fallback, cacheable)
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
