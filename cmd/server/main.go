package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/asakaida/schemareg/internal/catalog"
	"github.com/asakaida/schemareg/internal/handlers"
	"github.com/asakaida/schemareg/internal/infrastructure/config"
	"github.com/asakaida/schemareg/internal/infrastructure/database"
	"github.com/asakaida/schemareg/internal/infrastructure/metrics"
	"github.com/asakaida/schemareg/internal/infrastructure/notify"
	"github.com/asakaida/schemareg/internal/logging"
	"github.com/asakaida/schemareg/internal/repositories"
	"github.com/asakaida/schemareg/internal/repositories/postgres"
	"github.com/asakaida/schemareg/internal/services"
	"github.com/asakaida/schemareg/pkg/cache/memorycache"
)

const (
	defaultEnv            = "dev"
	metricsUpdateInterval = 10 * time.Second
	catalogRefreshTTL     = time.Minute
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		logging.SetGlobalLogger(logging.New(os.Stderr, "info", "json"))
		logging.Fatal().Err(err).Msg("failed to initialize config")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.SetGlobalLogger(logging.New(os.Stderr, "info", "json"))
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.SetGlobalLogger(logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	extra, err := catalog.LoadFiles(cfg.Catalog.Files...)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load catalog files")
	}
	reg, err := catalog.NewRegistry(extra...)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build schema registry")
	}

	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector, prometheus.DefaultRegisterer)

	opts := []services.Option{
		services.WithExtraCatalogs(extra...),
		services.WithMetrics(exporter),
	}

	if cfg.Cache.Enabled {
		c, err := memorycache.New(&memorycache.Config{
			MaxSizeBytes:    cfg.Cache.MaxMemoryBytes,
			DefaultTTL:      cfg.Cache.TTL(),
			CleanupInterval: cfg.Cache.CleanupInterval(),
			EnableMetrics:   cfg.Cache.Metrics,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to create cache")
		}
		defer c.Close()
		collector.SetCache(c)
		opts = append(opts, services.WithCache(c, cfg.Cache.TTL()))
	}

	var pg *database.Postgres
	if cfg.UsesDatabase() {
		pg, err = database.NewPostgres(&cfg.Database)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pg.Close()

		logging.Info().
			Str("user", cfg.Database.User).
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("connected to database")

		opts = append(opts, services.WithCatalogRepository(postgres.NewPostgresCatalogRepository(pg.DB)))
	}

	schemaService := services.NewSchemaService(reg, opts...)

	var watcher *notify.CatalogWatcher
	if pg != nil {
		watcher = startCatalogWatcher(pg, cfg, schemaService)
		defer watcher.Stop()
	}
	exporter.SetRegisteredSchemas(len(schemaService.Registry().Names()))

	serverOpts := []grpc.ServerOption{
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector, exporter)),
	}
	grpcServer := grpc.NewServer(serverOpts...)
	handlers.RegisterSchemaRegistryServer(grpcServer, handlers.NewSchemaRegistryHandler(schemaService))

	if cfg.Server.Reflection {
		reflection.Register(grpcServer)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logging.Fatal().Err(err).Str("addr", addr).Msg("failed to listen")
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 2)
	go func() {
		logging.Info().Str("addr", addr).Int("schemas", len(reg.Names())).Msg("gRPC server listening")
		if err := grpcServer.Serve(listener); err != nil {
			serverErrors <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		logging.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	updateCtx, stopUpdates := context.WithCancel(context.Background())
	defer stopUpdates()
	go updateGauges(updateCtx, exporter, schemaService)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		logging.Error().Err(err).Msg("server error")
	case sig := <-sigChan:
		logging.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logging.Info().Msg("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logging.Warn().Msg("shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("error stopping metrics server")
	}

	logging.Info().Msg("shutdown complete")
}

// startCatalogWatcher installs the stored catalog and reloads the registry whenever a newer version is written
func startCatalogWatcher(pg *database.Postgres, cfg *config.Config, schemaService *services.SchemaService) *notify.CatalogWatcher {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := cfg.Catalog.Name
	if _, err := schemaService.ReloadCatalog(ctx, name); err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logging.Fatal().Err(err).Str("catalog", name).Msg("failed to install stored catalog")
		}
		logging.Warn().Str("catalog", name).Msg("no stored catalog version, serving the built-in catalog")
	}

	watcher := notify.NewCatalogWatcher(pg.DB, cfg.Database.ConnectionString(), name, catalogRefreshTTL)
	watcher.OnChange(func(version string) {
		reloadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := schemaService.ReloadCatalog(reloadCtx, name); err != nil {
			logging.Error().Err(err).Str("catalog", name).Str("version", version).Msg("failed to reload catalog")
		}
	})
	if err := watcher.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to start catalog watcher")
	}
	return watcher
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func updateGauges(ctx context.Context, exporter *metrics.PrometheusExporter, schemaService *services.SchemaService) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exporter.Update()
			exporter.SetRegisteredSchemas(len(schemaService.Registry().Names()))
		}
	}
}
