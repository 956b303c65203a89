package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.InitialCash.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "coingecko", cfg.FeedSource)
	assert.Equal(t, 30*time.Second, cfg.PriceInterval)
	assert.Equal(t, "data/spellbot.db", cfg.DatabasePath)
	assert.False(t, cfg.MetricsEnabled)
	assert.Nil(t, cfg.RiskOverrides.MaxLeverage)
	assert.Contains(t, cfg.TrackedCoins, "bitcoin")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INITIAL_CASH", "25000")
	t.Setenv("PRICE_FEED", "binance")
	t.Setenv("PRICE_INTERVAL", "10s")
	t.Setenv("TRACKED_COINS", "bitcoin, ethereum")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("MAX_LEVERAGE", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.InitialCash.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, "binance", cfg.FeedSource)
	assert.Equal(t, 10*time.Second, cfg.PriceInterval)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, cfg.TrackedCoins)
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
	require.NotNil(t, cfg.RiskOverrides.MaxLeverage)
	assert.True(t, cfg.RiskOverrides.MaxLeverage.Equal(decimal.NewFromInt(10)))
	assert.Nil(t, cfg.RiskOverrides.MaxDailyLoss)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad chat id", func(t *testing.T) {
		t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad feed source", func(t *testing.T) {
		t.Setenv("PRICE_FEED", "kraken")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("non-positive cash", func(t *testing.T) {
		t.Setenv("INITIAL_CASH", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
