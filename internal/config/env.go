package config

import (
	"os"
	"strconv"
	"time"
)

// EnvConfig carries operational parameters consumed by the external
// collaborators (venue client, price feed, notifier), not by the core
// engine. Loaded from the environment, typically via a .env file.
type EnvConfig struct {
	Environment string // sandbox or production
	LogLevel    string

	Venue struct {
		APIKey  string
		Timeout time.Duration
	}

	Exchange struct {
		Name      string // recall (sandbox venue) or bybit
		APIKey    string
		APISecret string
		Demo      bool
	}

	MarketData struct {
		CoingeckoAPIKey string
		Timeout         time.Duration
	}

	Advisor struct {
		OpenAIAPIKey string
		Model        string
	}

	Monitoring struct {
		PrometheusPort int
		HealthPort     int
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID string
	}
}

// LoadEnv builds the operational config from environment variables.
func LoadEnv() *EnvConfig {
	cfg := &EnvConfig{
		Environment: getEnv("ENVIRONMENT", "sandbox"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	cfg.Venue.APIKey = getEnv("RECALL_API_KEY", "")
	cfg.Venue.Timeout = getEnvDuration("VENUE_TIMEOUT", 30*time.Second)

	cfg.Exchange.Name = getEnv("EXCHANGE_NAME", "recall")
	cfg.Exchange.APIKey = getEnv("BYBIT_API_KEY", "")
	cfg.Exchange.APISecret = getEnv("BYBIT_API_SECRET", "")
	cfg.Exchange.Demo = getEnvBool("BYBIT_DEMO", true)

	cfg.MarketData.CoingeckoAPIKey = getEnv("COINGECKO_API_KEY", "")
	cfg.MarketData.Timeout = getEnvDuration("MARKET_DATA_TIMEOUT", 15*time.Second)

	cfg.Advisor.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	cfg.Advisor.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	return cfg
}

// Sandbox reports whether the venue client should target the sandbox
// competition API.
func (c *EnvConfig) Sandbox() bool {
	return c.Environment != "production"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
