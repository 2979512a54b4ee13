package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL      string
	RedisAddr        string
	LogLevel         string
	Debug            bool
	ServiceName      string
	Environment      string
	ServerPort       string
	WorkerCount      int
	GatewayURL       string
	GatewaySecret    string
	APIToken         string
	DedupCacheTTL    time.Duration
	ReactionRetries  int
	ReactionInterval time.Duration
	DispatchAttempts int
	DispatchBackoff  time.Duration
	NPSWindow        time.Duration
}

func LoadConfig() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	gatewaySecret := os.Getenv("GATEWAY_SECRET")
	if gatewaySecret == "" {
		return nil, errors.New("GATEWAY_SECRET is required")
	}

	gatewayURL := os.Getenv("GATEWAY_URL")
	if gatewayURL == "" {
		return nil, errors.New("GATEWAY_URL is required")
	}
	gatewayURL = strings.TrimRight(gatewayURL, "/")

	cfg := &Config{
		DatabaseURL:      databaseURL,
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Debug:            getEnv("DEBUG", "false") == "true",
		ServiceName:      getEnv("SERVICE_NAME", "zapdesk-engine"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		WorkerCount:      getEnvInt("WORKER_COUNT", 10),
		GatewayURL:       gatewayURL,
		GatewaySecret:    gatewaySecret,
		APIToken:         getEnv("API_TOKEN", ""),
		DedupCacheTTL:    getEnvDuration("DEDUP_CACHE_TTL", 24*time.Hour),
		ReactionRetries:  getEnvInt("REACTION_RETRIES", 3),
		ReactionInterval: getEnvDuration("REACTION_RETRY_INTERVAL", 2*time.Second),
		DispatchAttempts: getEnvInt("DISPATCH_ATTEMPTS", 3),
		DispatchBackoff:  getEnvDuration("DISPATCH_BACKOFF", 500*time.Millisecond),
		NPSWindow:        getEnvDuration("NPS_WINDOW", 30*time.Minute),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}
