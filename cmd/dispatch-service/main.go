// dispatch-service is the HTTP API server that relays MDM commands to
// devices through the push gateway and tracks their execution history.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mdmdispatch/internal/api"
	"mdmdispatch/internal/command"
	"mdmdispatch/internal/config"
	"mdmdispatch/internal/devicectl"
	"mdmdispatch/internal/engine"
	"mdmdispatch/internal/gateway"
	"mdmdispatch/internal/health"
	"mdmdispatch/internal/history"
	"mdmdispatch/internal/observability"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Local overrides; absence of a .env file is the normal case.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	gwCfg := gateway.LoadConfigFromEnv()
	engineCfg := engine.LoadConfigFromEnv()
	engineCfg.Topic = gwCfg.Topic

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Command template catalog
	catalog, err := command.LoadCatalog(svcCfg.CommandCatalogPath)
	if err != nil {
		return err
	}

	// APNs gateway client (validates credentials; missing config is fatal)
	gatewayClient, err := gateway.NewAPNSClient(gwCfg)
	if err != nil {
		return err
	}

	// Execution history and dispatch engine
	store := history.NewStore()
	dispatchEngine := engine.New(engineCfg, gatewayClient, store, metrics)

	// Create health checker
	healthChecker := health.NewChecker(dispatchEngine)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Submitter:     dispatchEngine,
		History:       store,
		Catalog:       catalog,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		Lister:        devicectl.NewLister(),
		Restorer:      devicectl.NewRestorer(),
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Drain the dispatch engine, then close the gateway
	slog.Info("Draining dispatch engine")
	engineCtx, engineCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer engineCancel()
	if err := dispatchEngine.Close(engineCtx); err != nil {
		slog.Warn("Dispatch engine shutdown error", "error", err)
	}
	if err := gatewayClient.Close(); err != nil {
		slog.Warn("Gateway client shutdown error", "error", err)
	}

	// Log final dispatch stats
	stats := dispatchEngine.Stats()
	slog.Info("Dispatch stats",
		"submitted", stats.Submitted,
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"failed", stats.Failed,
		"retries", stats.Retries,
	)

	slog.Info("Shutdown complete")
	return nil
}
