package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/spellbot/internal/risk"
)

// Config holds all configuration for the account
type Config struct {
	// Account
	InitialCash decimal.Decimal

	// Mode
	Debug bool

	// Price feed
	FeedSource    string // coingecko or binance
	PriceInterval time.Duration
	TrackedCoins  []string

	// Telegram (optional)
	TelegramToken  string
	TelegramChatID int64

	// Metrics
	MetricsEnabled bool
	MetricsPort    int

	// Snapshots
	SnapshotInterval time.Duration

	// Risk overrides applied on top of the built-in limits
	RiskOverrides risk.Overrides

	// Database: a path for SQLite or a postgres:// DSN
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Account
		InitialCash: getEnvDecimal("INITIAL_CASH", decimal.NewFromInt(10000)),
		Debug:       getEnvBool("DEBUG", false),

		// Price feed
		FeedSource:    strings.ToLower(getEnv("PRICE_FEED", "coingecko")),
		PriceInterval: getEnvDuration("PRICE_INTERVAL", 30*time.Second),
		TrackedCoins:  splitList(getEnv("TRACKED_COINS", "bitcoin,ethereum,cardano,solana,polkadot")),

		// Telegram
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		// Metrics
		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsPort:    getEnvInt("METRICS_PORT", 9090),

		// Snapshots
		SnapshotInterval: getEnvDuration("SNAPSHOT_INTERVAL", 5*time.Minute),

		// Database
		DatabasePath: getEnv("DATABASE_PATH", "data/spellbot.db"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if !cfg.InitialCash.IsPositive() {
		return nil, fmt.Errorf("INITIAL_CASH must be positive, got %s", cfg.InitialCash)
	}

	if cfg.FeedSource != "coingecko" && cfg.FeedSource != "binance" {
		return nil, fmt.Errorf("unknown PRICE_FEED %q, want coingecko or binance", cfg.FeedSource)
	}

	// Risk overrides: only envs that are actually set land in the struct,
	// everything else keeps the built-in limits
	if v, ok := envDecimal("MAX_POSITION_SIZE"); ok {
		cfg.RiskOverrides.MaxPositionSize = &v
	}
	if v, ok := envDecimal("MAX_TOTAL_EXPOSURE"); ok {
		cfg.RiskOverrides.MaxTotalExposure = &v
	}
	if v, ok := envDecimal("MAX_DAILY_LOSS"); ok {
		cfg.RiskOverrides.MaxDailyLoss = &v
	}
	if v, ok := envDecimal("MAX_LEVERAGE"); ok {
		cfg.RiskOverrides.MaxLeverage = &v
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func envDecimal(key string) (decimal.Decimal, bool) {
	value := os.Getenv(key)
	if value == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
