package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Dhan credentials
	DhanClientID    string
	DhanAccessToken string
	DhanTOTPSecret  string
	DhanRootURL     string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	APIAddr       string
	FeedURL       string

	// Behaviour
	GatewayTimeout    time.Duration
	DispatchShards    int
	TrailPolicy       string // "ladder" or "offset"
	ReconcileInterval time.Duration

	// Notifications (optional)
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		DhanClientID:    mustEnv("DHAN_CLIENT_ID"),
		DhanAccessToken: getEnv("DHAN_ACCESS_TOKEN", ""),
		DhanTOTPSecret:  getEnv("DHAN_TOTP_SECRET", ""),
		DhanRootURL:     getEnv("DHAN_ROOT_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/orders.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),
		FeedURL:       getEnv("FEED_URL", "wss://api-order-update.dhan.co"),

		GatewayTimeout:    getDuration("GATEWAY_TIMEOUT", 5*time.Second),
		DispatchShards:    getInt("DISPATCH_SHARDS", 8),
		TrailPolicy:       getEnv("TRAIL_POLICY", "ladder"),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 60*time.Second),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] ignoring invalid %s=%q", key, v)
		return fallback
	}
	return d
}
