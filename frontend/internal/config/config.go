package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds everything the client side needs to reach the chat backend and
// keep its session. It is loaded once at boot.
type Config struct {
	Environment string `validate:"oneof=development production test"`

	// Backend
	APIBaseURL        string        `validate:"required,url"`
	HealthPath        string        `validate:"required,startswith=/"`
	HealthInterval    time.Duration `validate:"gt=0"`
	HealthTimeout     time.Duration `validate:"gt=0,ltfield=HealthInterval"`
	HealthProbe       string        `validate:"oneof=http grpc"`
	HealthGRPCTarget  string        `validate:"required_if=HealthProbe grpc"`
	HealthGRPCService string
	InvalidationScope string `validate:"oneof=all session"`

	// Session persistence
	SessionBackend string `validate:"oneof=memory file redis postgres"`
	SessionProfile string `validate:"required"`
	SessionDir     string
	SessionKeyHex  string `validate:"omitempty,hexadecimal,len=64"`
	RedisURL       string `validate:"required_if=SessionBackend redis"`
	DatabaseURL    string `validate:"required_if=SessionBackend postgres"`

	// UI bridge
	BridgeAddr     string `validate:"required"`
	AllowedOrigins []string

	// Media uploads
	MediaBucket        string
	MediaRegion        string
	MediaPublicBaseURL string `validate:"omitempty,url"`

	// Observability
	LogLevel         string
	LogFormat        string `validate:"oneof=json console"`
	OTLPEndpoint     string `validate:"omitempty,url"`
	PyroscopeAddress string `validate:"omitempty,url"`
}

var validate = validator.New()

// Load reads .env (when present) and the process environment, applies
// defaults, and validates the result. Production refuses insecure setups.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}

	var errs []error
	duration := func(key string, fallback time.Duration) time.Duration {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
			return fallback
		}
		return d
	}

	cfg := &Config{
		Environment: getEnv("GINCHAT_ENV", "development"),

		APIBaseURL:        strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		HealthPath:        getEnv("HEALTH_PATH", "/health"),
		HealthInterval:    duration("HEALTH_INTERVAL", 30*time.Second),
		HealthTimeout:     duration("HEALTH_TIMEOUT", 3*time.Second),
		HealthProbe:       getEnv("HEALTH_PROBE", "http"),
		HealthGRPCTarget:  getEnv("HEALTH_GRPC_TARGET", ""),
		HealthGRPCService: getEnv("HEALTH_GRPC_SERVICE", ""),
		InvalidationScope: getEnv("INVALIDATION_SCOPE", "all"),

		SessionBackend: getEnv("SESSION_BACKEND", "file"),
		SessionProfile: getEnv("SESSION_PROFILE", "default"),
		SessionDir:     getEnv("SESSION_DIR", ""),
		SessionKeyHex:  getEnv("SESSION_KEY", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		BridgeAddr:     getEnv("BRIDGE_ADDR", "127.0.0.1:7070"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		MediaBucket:        getEnv("MEDIA_S3_BUCKET", ""),
		MediaRegion:        getEnv("MEDIA_S3_REGION", ""),
		MediaPublicBaseURL: getEnv("MEDIA_PUBLIC_BASE_URL", ""),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		PyroscopeAddress: getEnv("PYROSCOPE_SERVER_ADDRESS", ""),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct rules, then the production-only ones.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Environment != "production" {
		return nil
	}

	// 🛡️ Bearer tokens must not cross the network in clear text.
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("config: API_BASE_URL: %w", err)
	}
	if u.Scheme != "https" && !isLoopback(u.Hostname()) {
		return errors.New("config: API_BASE_URL must use https in production")
	}

	// 🛡️ A session file on disk is sealed in production.
	if c.SessionBackend == "file" && c.SessionKeyHex == "" {
		return errors.New("config: SESSION_KEY is required for the file session backend in production")
	}
	return nil
}

// MediaEnabled reports whether uploads to object storage are configured.
func (c *Config) MediaEnabled() bool {
	return c.MediaBucket != ""
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
