package src

import (
	"eino_dealer_bot/src/model"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LogConfig          model.LogConfig          `envconfig:""`
	LLMConfig          model.LLMConfig          `envconfig:""`
	ConversationConfig model.ConversationConfig `envconfig:""`
	TelemetryConfig    model.TelemetryConfig    `envconfig:""`
	BotConfig          model.BotConfig          `envconfig:""`
}

func LoadConfig() (*Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		return nil, fmt.Errorf("error processing environment configuration: %w", err)
	}

	return &config, nil
}
