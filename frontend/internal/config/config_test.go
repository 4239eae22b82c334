package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"GINCHAT_ENV", "API_BASE_URL", "HEALTH_PATH", "HEALTH_INTERVAL", "HEALTH_TIMEOUT",
	"HEALTH_PROBE", "HEALTH_GRPC_TARGET", "HEALTH_GRPC_SERVICE", "INVALIDATION_SCOPE",
	"SESSION_BACKEND", "SESSION_PROFILE", "SESSION_DIR", "SESSION_KEY", "REDIS_URL",
	"DATABASE_URL", "BRIDGE_ADDR", "CORS_ALLOWED_ORIGINS",
	"MEDIA_S3_BUCKET", "MEDIA_S3_REGION", "MEDIA_PUBLIC_BASE_URL", "LOG_LEVEL", "LOG_FORMAT",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "PYROSCOPE_SERVER_ADDRESS",
}

// clearEnv unsets every key Load reads and runs the test from an empty dir so
// a developer's .env cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, "/health", cfg.HealthPath)
	assert.Equal(t, 30*time.Second, cfg.HealthInterval)
	assert.Equal(t, 3*time.Second, cfg.HealthTimeout)
	assert.Equal(t, "http", cfg.HealthProbe)
	assert.Equal(t, "all", cfg.InvalidationScope)
	assert.Equal(t, "file", cfg.SessionBackend)
	assert.Equal(t, "default", cfg.SessionProfile)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "https://chat.example.com/")
	t.Setenv("HEALTH_INTERVAL", "10s")
	t.Setenv("HEALTH_TIMEOUT", "500ms")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.HealthInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.HealthTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SESSION_PROFILE=from-dotenv\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.SessionProfile)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":            {"HEALTH_INTERVAL": "often"},
		"timeout above interval":  {"HEALTH_INTERVAL": "1s", "HEALTH_TIMEOUT": "5s"},
		"unknown backend":         {"SESSION_BACKEND": "cookie"},
		"redis without url":       {"SESSION_BACKEND": "redis"},
		"postgres without dsn":    {"SESSION_BACKEND": "postgres"},
		"grpc probe without addr": {"HEALTH_PROBE": "grpc"},
		"short session key":       {"SESSION_KEY": "abcd"},
		"bad scope":               {"INVALIDATION_SCOPE": "some"},
		"relative api url":        {"API_BASE_URL": "localhost"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_Production(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

	t.Run("plain http to remote host", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GINCHAT_ENV", "production")
		t.Setenv("API_BASE_URL", "http://chat.example.com")
		t.Setenv("SESSION_KEY", key)

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "https")
	})

	t.Run("unsealed session file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GINCHAT_ENV", "production")
		t.Setenv("API_BASE_URL", "https://chat.example.com")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_KEY")
	})

	t.Run("hardened", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GINCHAT_ENV", "production")
		t.Setenv("API_BASE_URL", "https://chat.example.com")
		t.Setenv("SESSION_KEY", key)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.Environment)
	})

	t.Run("loopback over http is allowed", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GINCHAT_ENV", "production")
		t.Setenv("SESSION_BACKEND", "memory")

		_, err := Load()
		assert.NoError(t, err)
	})
}
