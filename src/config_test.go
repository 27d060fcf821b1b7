package src

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogConfig.Level)
	assert.Equal(t, float32(0.9), cfg.LLMConfig.ReformulationTemperature)
	assert.Equal(t, 168*time.Hour, cfg.ConversationConfig.SummaryTTL)
	assert.Equal(t, 5, cfg.ConversationConfig.HistorySize)
	assert.False(t, cfg.TelemetryConfig.Enabled)
	assert.Equal(t, "config.yaml", cfg.BotConfig.ConfigPath)
	assert.Equal(t, 24*time.Hour, cfg.BotConfig.FollowUpIdleAfter)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("REDIS_URL", "")
	t.Setenv("FOLLOWUP_SEND_DELAY", "500ms")
	t.Setenv("INVENTORY_PATH", "stock.yaml")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLMConfig.Provider)
	assert.Equal(t, float32(0.2), cfg.LLMConfig.Temperature)
	assert.Empty(t, cfg.ConversationConfig.RedisURL)
	assert.Equal(t, 500*time.Millisecond, cfg.BotConfig.FollowUpSendDelay)
	assert.Equal(t, "stock.yaml", cfg.BotConfig.InventoryPath)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("HISTORY_SIZE", "five")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "environment configuration")
}
