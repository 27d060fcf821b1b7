package model

import "time"

// ----------------------------------------------------
// ================ Config ================

// LogConfig holds the zerolog settings
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"json"`
	Output     string `envconfig:"LOG_OUTPUT" default:"stdout"`
	FilePath   string `envconfig:"LOG_FILE_PATH" default:"logs/bot.log"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"rfc3339"`
}

// LLMConfig selects and tunes the chat model behind the reasoner
type LLMConfig struct {
	Provider                 string  `envconfig:"LLM_PROVIDER" default:"openrouter"`
	Model                    string  `envconfig:"LLM_MODEL" default:"openai/gpt-4o-mini"`
	APIKey                   string  `envconfig:"LLM_API_KEY"`
	BaseURL                  string  `envconfig:"LLM_BASE_URL"`
	MaxTokens                int     `envconfig:"LLM_MAX_TOKENS" default:"300"`
	Temperature              float32 `envconfig:"LLM_TEMPERATURE" default:"0.6"`
	ReformulationTemperature float32 `envconfig:"LLM_REFORMULATION_TEMPERATURE" default:"0.9"`
}

// ConversationConfig holds the Redis-backed conversation state settings. An
// empty RedisURL keeps all state in memory.
type ConversationConfig struct {
	RedisURL              string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	SummaryTTL            time.Duration `envconfig:"SUMMARY_TTL" default:"168h"`
	HistorySize           int           `envconfig:"HISTORY_SIZE" default:"5"`
	TranscriptMaxMessages int           `envconfig:"TRANSCRIPT_MAX_MESSAGES" default:"20"`
	CircuitTTL            time.Duration `envconfig:"CIRCUIT_TTL" default:"1h"`
}

// TelemetryConfig controls the OpenTelemetry trace exporter
type TelemetryConfig struct {
	Enabled     bool   `envconfig:"OTEL_ENABLED" default:"false"`
	Endpoint    string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	ServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"eino-dealer-bot"`
}

// BotConfig points at the YAML content and inventory files and tunes the
// idle sweeper. An empty InventoryPath serves the built-in demo stock.
type BotConfig struct {
	ConfigPath        string        `envconfig:"BOT_CONFIG_PATH" default:"config.yaml"`
	InventoryPath     string        `envconfig:"INVENTORY_PATH"`
	FollowUpIdleAfter time.Duration `envconfig:"FOLLOWUP_IDLE_AFTER" default:"24h"`
	FollowUpSendDelay time.Duration `envconfig:"FOLLOWUP_SEND_DELAY" default:"2s"`
}
