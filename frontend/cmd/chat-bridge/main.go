// Command chat-bridge serves the local UI: backend health, session state and a
// live event stream, all on top of the session-aware API client.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/api/handlers"
	"github.com/ginchat/ginchat/frontend/internal/api/middleware"
	"github.com/ginchat/ginchat/frontend/internal/api/router"
	"github.com/ginchat/ginchat/frontend/internal/apiclient"
	"github.com/ginchat/ginchat/frontend/internal/bootstrap"
	"github.com/ginchat/ginchat/frontend/internal/config"
	"github.com/ginchat/ginchat/frontend/internal/telemetry"
)

const serviceName = "ginchat-bridge"

func main() {
	// --- 1. Configuration & Telemetry ---
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("FATAL: configuration rejected")
	}
	logger := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout).With().Str("service", serviceName).Logger()
	logger.Info().Str("env", cfg.Environment).Str("api", cfg.APIBaseURL).Msg("🚀 Booting chat bridge...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("FATAL: bridge stopped")
	}
	logger.Info().Msg("✅ Chat bridge shutdown complete")
}

// serve runs the bridge until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("trace flush failed")
		}
	}()

	stopProfiling, err := telemetry.StartProfiling(serviceName, cfg.PyroscopeAddress, map[string]string{"env": cfg.Environment})
	if err != nil {
		return err
	}
	defer stopProfiling()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	// --- 2. Session & Backend Link ---
	sessions, closeSessions, err := bootstrap.Sessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	hub := telemetry.NewHub(metrics)
	defer hub.Close()

	client, err := bootstrap.Client(cfg, sessions, hub, metrics, logger, apiclient.WithUserAgent(serviceName))
	if err != nil {
		return err
	}

	// --- 3. Background Workers ---
	probe, closeProbe, err := bootstrap.Probe(cfg)
	if err != nil {
		return err
	}
	defer closeProbe()

	monitor := bootstrap.Monitor(cfg, probe, hub, metrics, logger)
	if err := monitor.Start(ctx); err != nil {
		return err
	}
	defer monitor.Stop()

	// --- 4. HTTP Gateway ---
	mux := router.NewRouter(router.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		HealthHandler:  handlers.NewHealthHandler(monitor),
		SessionHandler: handlers.NewSessionHandler(sessions, client),
		EventsHandler:  handlers.NewEventsHandler(hub, monitor, cfg.AllowedOrigins),
		RateLimiter:    middleware.NewRateLimiter(ctx, 5, 20),
		Gatherer:       reg,
		Logger:         logger,
	})

	// Streams stay open indefinitely, so no WriteTimeout.
	server := &http.Server{
		Addr:              cfg.BridgeAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// --- 5. Graceful Exit ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.BridgeAddr).Msg("🌐 Chat bridge active")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("🛑 Shutting down...")
	monitor.Stop() // no probe may outlive the server
	hub.Close()    // ends open event streams

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ERROR: Forced shutdown")
	}
	return nil
}
