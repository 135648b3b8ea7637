package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Status  StatusConfig
	Poll    PollConfig
	Resync  ResyncConfig
	Webhook WebhookConfig
	Trace   TraceConfig
}

// ServerConfig points at the job server the watcher observes.
type ServerConfig struct {
	URL            string
	ReconnectDelay time.Duration
	FetchTimeout   time.Duration
}

// StatusConfig is the watcher's own local HTTP surface.
type StatusConfig struct {
	Addr string
}

type PollConfig struct {
	LiveInterval time.Duration
	DownInterval time.Duration
}

// ResyncConfig bounds how often unknown-id patches may force a full
// snapshot refetch.
type ResyncConfig struct {
	Burst           int
	RefillPerSecond float64
}

type WebhookConfig struct {
	Endpoint      string
	SigningSecret string
	MaxAttempts   int
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			URL:            env("FACTORYWATCH_SERVER_URL", "http://localhost:8000"),
			ReconnectDelay: envDuration("FACTORYWATCH_RECONNECT_DELAY", 5*time.Second),
			FetchTimeout:   envDuration("FACTORYWATCH_FETCH_TIMEOUT", 15*time.Second),
		},
		Status: StatusConfig{
			Addr: env("FACTORYWATCH_STATUS_ADDR", ":8090"),
		},
		Poll: PollConfig{
			LiveInterval: envDuration("FACTORYWATCH_POLL_LIVE_INTERVAL", 60*time.Second),
			DownInterval: envDuration("FACTORYWATCH_POLL_DOWN_INTERVAL", 5*time.Second),
		},
		Resync: ResyncConfig{
			Burst:           envInt("FACTORYWATCH_RESYNC_BURST", 3),
			RefillPerSecond: envFloat("FACTORYWATCH_RESYNC_REFILL", 0.2),
		},
		Webhook: WebhookConfig{
			Endpoint:      env("FACTORYWATCH_WEBHOOK_URL", ""),
			SigningSecret: env("FACTORYWATCH_WEBHOOK_SECRET", ""),
			MaxAttempts:   envInt("FACTORYWATCH_WEBHOOK_MAX_ATTEMPTS", 3),
		},
		Trace: TraceConfig{
			Exporter:     env("FACTORYWATCH_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("FACTORYWATCH_OTLP_ENDPOINT", "localhost:4318"),
			OTLPInsecure: envBool("FACTORYWATCH_OTLP_INSECURE", true),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
