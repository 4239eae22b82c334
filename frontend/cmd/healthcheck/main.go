// Command healthcheck probes the chat backend once and reports through its
// exit code: 0 healthy, 1 degraded or misconfigured. Suitable for container
// HEALTHCHECK directives.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/bootstrap"
	"github.com/ginchat/ginchat/frontend/internal/config"
	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("configuration rejected")
		return 1
	}

	probe, closer, err := bootstrap.Probe(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("probe setup failed")
		return 1
	}
	defer closer()

	state := bootstrap.Monitor(cfg, probe, nil, nil, zerolog.Nop()).Check(ctx)
	_ = json.NewEncoder(os.Stdout).Encode(state)

	if state.Status != domain.HealthHealthy {
		return 1 // Docker marks as UNHEALTHY
	}
	return 0
}
