package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines the getUpdates timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL         string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen      string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port        int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format    string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder string `yaml:"keys_order"`
	Dir       string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile   string `yaml:"bot_file"`
	// Rotation settings for the file sink; zero picks the rotator defaults.
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects batch getUpdates polling.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

const (
	// FanOutAll dispatches reply and plain-text matches to every matching command.
	FanOutAll = "all"
	// FanOutFirst stops at the first matching command.
	FanOutFirst = "first"
)

// RateLimitConfig holds settings for per-user rate limiting.
// IntervalMS <= 0 disables the limiter. ExcludeUpdates accepts "callback" and "message".
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	Burst          int      `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// CommandsConfig tunes command resolution and dispatch.
type CommandsConfig struct {
	Prefix      string `yaml:"prefix" envconfig:"COMMANDS_PREFIX"`
	BotUsername string `yaml:"bot_username" envconfig:"COMMANDS_BOT_USERNAME"`
	FanOut      string `yaml:"fan_out" envconfig:"COMMANDS_FAN_OUT"`
	MaxDepth    int    `yaml:"max_depth" envconfig:"COMMANDS_MAX_DEPTH"`
	TimeoutMS   int    `yaml:"timeout_ms" envconfig:"COMMANDS_TIMEOUT_MS"`
	Workers     int    `yaml:"workers" envconfig:"COMMANDS_WORKERS"`
	BatchLimit  int    `yaml:"batch_limit" envconfig:"COMMANDS_BATCH_LIMIT"`
	SyncMenu    bool   `yaml:"sync_menu" envconfig:"COMMANDS_SYNC_MENU"`
}

// SenderConfig configures the outbound queue. Disabled means replies are sent inline.
type SenderConfig struct {
	Async      bool `yaml:"async" envconfig:"SENDER_ASYNC"`
	Workers    int  `yaml:"workers" envconfig:"SENDER_WORKERS"`
	QueueSize  int  `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	MaxRetries int  `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Commands  CommandsConfig  `yaml:"commands"`
	Sender    SenderConfig    `yaml:"sender"`
}

// Default values applied by Normalize.
const (
	DefaultPrefix     = "/"
	DefaultMaxDepth   = 8
	DefaultBatchLimit = 100
	DefaultTimeoutMS  = 30000
)

// Load reads configuration from a YAML file, a sibling .env file and the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path, then applies environment overrides.
// A .env file in the working directory is loaded first when present; existing variables win.
func Decode(path string, dst any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch rm {
	case "", "polling":
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return errors.New("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return errors.New("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return errors.New("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if err := normalizeRateLimit(&cfg.RateLimit); err != nil {
		return err
	}
	if err := normalizeCommands(&cfg.Commands); err != nil {
		return err
	}
	if cfg.Sender.Workers < 0 || cfg.Sender.QueueSize < 0 || cfg.Sender.MaxRetries < 0 {
		return errors.New("sender.workers, sender.queue_size and sender.max_retries must be >= 0")
	}
	return nil
}

func normalizeRateLimit(rl *RateLimitConfig) error {
	if rl.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	if rl.Burst <= 0 {
		rl.Burst = 1
	}
	for i, v := range rl.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		switch key {
		case "", UpdateCallback, UpdateMessage:
			rl.ExcludeUpdates[i] = key
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
	}
	return nil
}

func normalizeCommands(c *CommandsConfig) error {
	c.Prefix = strings.TrimSpace(c.Prefix)
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	c.BotUsername = strings.TrimPrefix(strings.TrimSpace(c.BotUsername), "@")

	fan := strings.ToLower(strings.TrimSpace(c.FanOut))
	switch fan {
	case "":
		fan = FanOutAll
	case FanOutAll, FanOutFirst:
	default:
		return fmt.Errorf("invalid commands.fan_out %q; allowed: all, first", c.FanOut)
	}
	c.FanOut = fan

	switch {
	case c.MaxDepth == 0:
		c.MaxDepth = DefaultMaxDepth
	case c.MaxDepth < 0:
		return errors.New("commands.max_depth must be >= 1")
	}
	switch {
	case c.TimeoutMS == 0:
		c.TimeoutMS = DefaultTimeoutMS
	case c.TimeoutMS < 0:
		return errors.New("commands.timeout_ms must be >= 0")
	}
	if c.Workers < 0 {
		return errors.New("commands.workers must be >= 0")
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	switch {
	case c.BatchLimit == 0:
		c.BatchLimit = DefaultBatchLimit
	case c.BatchLimit < 1 || c.BatchLimit > 100:
		return errors.New("commands.batch_limit must be within 1..100")
	}
	return nil
}
