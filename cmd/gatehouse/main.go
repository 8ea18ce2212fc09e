package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gatehouse-dev/gatehouse/pkg/api"
	"github.com/gatehouse-dev/gatehouse/pkg/config"
	"github.com/gatehouse-dev/gatehouse/pkg/docstore"
	"github.com/gatehouse-dev/gatehouse/pkg/httputil"
	"github.com/gatehouse-dev/gatehouse/pkg/middleware"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/orgs"
	"github.com/gatehouse-dev/gatehouse/pkg/users"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"version":  version,
		"docstore": cfg.Docstore.Type,
	}).Info("starting gatehouse")

	ctx := context.Background()

	// Tracing
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize tracing")
		os.Exit(1)
	}

	// Document store
	store, err := docstore.New(cfg.Docstore)
	if err != nil {
		logger.WithError(err).Error("failed to initialize document store")
		os.Exit(1)
	}

	// Metrics
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		store = docstore.Instrument(store, cfg.Docstore.Type, metrics)
	}

	// Services
	userStore := users.NewStore(store, logger)
	orgService := orgs.NewService(store, userStore, logger, metrics)

	if cfg.VocabularyFile != "" {
		if err := registerVocabularies(orgService, cfg.VocabularyFile); err != nil {
			logger.WithError(err).Error("failed to load vocabulary file")
			os.Exit(1)
		}
		logger.WithField("file", cfg.VocabularyFile).Info("custom vocabularies registered")
	}

	// API server
	apiLogger := logrus.New()
	apiLogger.SetFormatter(&logrus.JSONFormatter{})

	server := api.NewServer(api.Options{
		OrgService:   orgService,
		UserStore:    userStore,
		Auth:         middleware.NewAuthMiddleware(userStore, logger, true),
		AppLogger:    logger,
		Logger:       apiLogger,
		Metrics:      metrics,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics listener on a separate port for probes.
	healthChecker := observability.NewHealthChecker(version, map[string]observability.Dependency{
		"docstore": store,
	})
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr: cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: httputil.Chain(
			httputil.RequestIDMiddleware,
			httputil.RecoveryMiddleware(logger),
		)(healthMux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return store.Close()
	})
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("api listener starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health listener starting")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("gatehouse stopped")
}

// registerVocabularies loads extra sub-entity vocabularies from a YAML
// file and registers them with the nested engine.
func registerVocabularies(service *orgs.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	configs, err := orgs.ParseVocabularies(data)
	if err != nil {
		return err
	}
	for field, cfg := range configs {
		service.RegisterSubEntity(field, cfg)
	}
	return nil
}
