// Package bootstrap turns a loaded Config into wired components. The binaries
// share it so the bridge, the CLI and the health check build identical stacks.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/apiclient"
	"github.com/ginchat/ginchat/frontend/internal/config"
	"github.com/ginchat/ginchat/frontend/internal/core/domain"
	"github.com/ginchat/ginchat/frontend/internal/core/services"
	"github.com/ginchat/ginchat/frontend/internal/db/file"
	"github.com/ginchat/ginchat/frontend/internal/db/memory"
	"github.com/ginchat/ginchat/frontend/internal/db/postgres"
	"github.com/ginchat/ginchat/frontend/internal/db/redis"
	"github.com/ginchat/ginchat/frontend/internal/infrastructure/crypto"
	"github.com/ginchat/ginchat/frontend/internal/infrastructure/storage"
	"github.com/ginchat/ginchat/frontend/internal/telemetry"
	"github.com/ginchat/ginchat/frontend/internal/workers"
)

// Closer releases whatever a constructor opened. It is never nil.
type Closer func() error

func noopCloser() error { return nil }

// SessionBackend opens the key-value store selected by SESSION_BACKEND.
func SessionBackend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (domain.KeyValueBackend, Closer, error) {
	switch cfg.SessionBackend {
	case "memory":
		return memory.NewSessionRepository(), noopCloser, nil

	case "file":
		dir := cfg.SessionDir
		if dir == "" {
			d, err := file.DefaultDir()
			if err != nil {
				return nil, nil, err
			}
			dir = d
		}
		var sealer crypto.Sealer
		if cfg.SessionKeyHex != "" {
			s, err := crypto.NewXChaChaSealer(cfg.SessionKeyHex)
			if err != nil {
				return nil, nil, fmt.Errorf("bootstrap: session key: %w", err)
			}
			sealer = s
		} else {
			logger.Warn().Msg("⚠️ SESSION_KEY unset, session file is stored unsealed")
		}
		repo, err := file.NewSessionRepository(dir, cfg.SessionProfile, sealer)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug().Str("path", repo.Path()).Bool("sealed", sealer != nil).Msg("file session backend ready")
		return repo, noopCloser, nil

	case "redis":
		rdb, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("bootstrap: %w: %v", redis.ErrRedisUnavailable, err)
		}
		return redis.NewSessionRepository(rdb, cfg.SessionProfile), rdb.Close, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewSessionRepository(db, cfg.SessionProfile)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, db.Close, nil
	}
	return nil, nil, fmt.Errorf("bootstrap: unknown session backend %q", cfg.SessionBackend)
}

// Sessions wraps the configured backend in the session service.
func Sessions(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*services.SessionService, Closer, error) {
	backend, closer, err := SessionBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return services.NewSessionService(backend, logger), closer, nil
}

// Scope maps INVALIDATION_SCOPE onto a response-pipeline scope.
func Scope(name string) apiclient.InvalidationScope {
	if name == "session" {
		return apiclient.SessionEndpointsOnly
	}
	return apiclient.AllEndpoints
}

// HTTPClient is the transport for API calls. It carries no Timeout: a call is
// bounded only by the caller's context.
func HTTPClient() *http.Client {
	return &http.Client{}
}

// Client builds the session-aware API client. publisher and metrics may be nil.
func Client(cfg *config.Config, sessions domain.SessionStore, publisher domain.EventPublisher, metrics *telemetry.Metrics, logger zerolog.Logger, extra ...apiclient.Option) (*apiclient.Client, error) {
	opts := []apiclient.Option{
		apiclient.WithHTTPClient(HTTPClient()),
		apiclient.WithLogger(logger),
		apiclient.WithMetrics(metrics),
		apiclient.WithInvalidationScope(Scope(cfg.InvalidationScope)),
	}
	if publisher != nil {
		opts = append(opts, apiclient.WithPublisher(publisher))
	}
	return apiclient.New(cfg.APIBaseURL, sessions, append(opts, extra...)...)
}

// Probe builds the liveness probe selected by HEALTH_PROBE.
func Probe(cfg *config.Config) (domain.Probe, Closer, error) {
	if cfg.HealthProbe == "grpc" {
		p, conn, err := workers.DialGRPCProbe(cfg.HealthGRPCTarget, cfg.HealthGRPCService)
		if err != nil {
			return nil, nil, err
		}
		return p, conn.Close, nil
	}
	p, err := workers.NewHTTPProbe(cfg.APIBaseURL, cfg.HealthPath)
	if err != nil {
		return nil, nil, err
	}
	return p, noopCloser, nil
}

// Monitor builds a health monitor on probe with the configured cadence.
func Monitor(cfg *config.Config, probe domain.Probe, publisher domain.EventPublisher, metrics *telemetry.Metrics, logger zerolog.Logger) *workers.HealthMonitor {
	opts := []workers.MonitorOption{
		workers.WithInterval(cfg.HealthInterval),
		workers.WithProbeTimeout(cfg.HealthTimeout),
		workers.WithMonitorLogger(logger),
		workers.WithMonitorMetrics(metrics),
	}
	if publisher != nil {
		opts = append(opts, workers.WithMonitorPublisher(publisher))
	}
	return workers.NewHealthMonitor(probe, opts...)
}

// Uploader returns nil when no media bucket is configured.
func Uploader(ctx context.Context, cfg *config.Config) (storage.MediaUploader, error) {
	if !cfg.MediaEnabled() {
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, cfg.MediaRegion)
	if err != nil {
		return nil, err
	}
	u, err := storage.NewS3Uploader(client, cfg.MediaBucket, cfg.MediaRegion, cfg.MediaPublicBaseURL)
	if err != nil {
		return nil, err
	}
	return u, nil
}
