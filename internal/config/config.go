package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the client.
type Config struct {
	App     AppConfig
	Backend BackendConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Session SessionConfig
}

// AppConfig identifies the running client.
type AppConfig struct {
	Name string
	Env  string
}

// BackendConfig locates the remote identity backend.
type BackendConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// RedisConfig holds credential-store connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// SessionConfig defines session lifecycle parameters.
type SessionConfig struct {
	RevalidateIntervalSeconds int
	ExpiryWarningLeadMinutes  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "marketplace-client"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_BASE_URL", "http://127.0.0.1:8080"),
			TimeoutSeconds: getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 15),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			Namespace: getEnv("CREDENTIAL_NAMESPACE", "marketplace"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Session: SessionConfig{
			RevalidateIntervalSeconds: getEnvAsInt("SESSION_REVALIDATE_INTERVAL_SECONDS", 300),
			ExpiryWarningLeadMinutes:  getEnvAsInt("SESSION_EXPIRY_WARNING_LEAD_MINUTES", 5),
		},
	}

	return cfg, nil
}

// Timeout returns the configured backend request timeout duration.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// RevalidateInterval returns the revalidation loop period.
func (s SessionConfig) RevalidateInterval() time.Duration {
	if s.RevalidateIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.RevalidateIntervalSeconds) * time.Second
}

// ExpiryWarningLead returns how long before token expiry the warning fires.
func (s SessionConfig) ExpiryWarningLead() time.Duration {
	if s.ExpiryWarningLeadMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.ExpiryWarningLeadMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
