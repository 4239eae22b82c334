package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginchat/ginchat/frontend/internal/config"
)

func testConfig(apiURL, addr string) *config.Config {
	return &config.Config{
		Environment:       "test",
		APIBaseURL:        apiURL,
		HealthPath:        "/health",
		HealthInterval:    time.Second,
		HealthTimeout:     200 * time.Millisecond,
		HealthProbe:       "http",
		InvalidationScope: "all",
		SessionBackend:    "memory",
		SessionProfile:    "default",
		BridgeAddr:        addr,
		LogLevel:          "error",
		LogFormat:         "json",
	}
}

func TestServe_ProbesUntilCancelled(t *testing.T) {
	var probes atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			probes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, testConfig(backend.URL, "127.0.0.1:0"), zerolog.Nop()) }()

	require.Eventually(t, func() bool { return probes.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not shut down")
	}
}

func TestServe_ListenFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	err := serve(context.Background(), testConfig(backend.URL, "127.0.0.1:-1"), zerolog.Nop())
	assert.Error(t, err)
}
