package main

import (
	"strings"

	coreconfig "github.com/m3rciful/cmdbus/core/config"
	coredatabase "github.com/m3rciful/cmdbus/core/database"
)

// FeedbackConfig tunes the feedback conversation.
type FeedbackConfig struct {
	Prompt string `yaml:"prompt" envconfig:"FEEDBACK_PROMPT"`
}

// AppConfig is the file layout of the example bot: the core sections plus storage.
type AppConfig struct {
	coreconfig.Config `yaml:",inline"`
	Database          coredatabase.Config `yaml:"database"`
	Feedback          FeedbackConfig      `yaml:"feedback"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *AppConfig) CoreConfig() *coreconfig.Config { return &c.Config }

const defaultFeedbackPrompt = "What would you like to tell us?"

// LoadConfig reads and validates the configuration at path.
func LoadConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	cfg.Feedback.Prompt = strings.TrimSpace(cfg.Feedback.Prompt)
	if cfg.Feedback.Prompt == "" {
		cfg.Feedback.Prompt = defaultFeedbackPrompt
	}
	return &cfg, nil
}
