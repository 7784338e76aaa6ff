package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "LISTING_WATCHER_CONFIG"
	dbPathEnv         = "DB_PATH"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	anthropicKeyEnv   = "ANTHROPIC_API_KEY"
	anthropicModelEnv = "ANTHROPIC_MODEL"
	pollIntervalEnv   = "POLL_INTERVAL_SECONDS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig locates the SQLite ledger file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WatcherConfig defines the steady-state poll cadence.
type WatcherConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"`
}

// Interval resolves the configured cadence to a duration.
func (w WatcherConfig) Interval() time.Duration {
	if w.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(w.IntervalSeconds) * time.Second
}

// TelegramConfig wires bot credentials and the per-exchange promo images.
type TelegramConfig struct {
	BotToken         string `yaml:"botToken"`
	UpbitImagePath   string `yaml:"upbitImagePath"`
	BithumbImagePath string `yaml:"bithumbImagePath"`
}

// AnthropicConfig defines how to contact the Anthropic API.
type AnthropicConfig struct {
	APIKey    string `yaml:"apiKey"`
	Model     string `yaml:"model"`
	PromptDir string `yaml:"promptDir"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports the required credentials that are missing. A non-nil
// error is fatal at startup.
func (c Config) Validate() error {
	var missing []string
	if c.Telegram.BotToken == "" {
		missing = append(missing, telegramTokenEnv)
	}
	if c.Anthropic.APIKey == "" {
		missing = append(missing, anthropicKeyEnv)
	}
	if c.Database.Path == "" {
		missing = append(missing, dbPathEnv)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dbPathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}

	if v := os.Getenv(anthropicKeyEnv); v != "" {
		c.Anthropic.APIKey = v
	}

	if v := os.Getenv(anthropicModelEnv); v != "" {
		c.Anthropic.Model = v
	}

	if v := os.Getenv(pollIntervalEnv); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			c.Watcher.IntervalSeconds = seconds
		} else {
			log.Printf("config: invalid %s value %q, keeping %d", pollIntervalEnv, v, c.Watcher.IntervalSeconds)
		}
	}
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Watcher.IntervalSeconds > 0 {
		base.Watcher.IntervalSeconds = override.Watcher.IntervalSeconds
	}

	if override.Telegram.BotToken != "" {
		base.Telegram.BotToken = override.Telegram.BotToken
	}
	if override.Telegram.UpbitImagePath != "" {
		base.Telegram.UpbitImagePath = override.Telegram.UpbitImagePath
	}
	if override.Telegram.BithumbImagePath != "" {
		base.Telegram.BithumbImagePath = override.Telegram.BithumbImagePath
	}

	if override.Anthropic.APIKey != "" {
		base.Anthropic.APIKey = override.Anthropic.APIKey
	}
	if override.Anthropic.Model != "" {
		base.Anthropic.Model = override.Anthropic.Model
	}
	if override.Anthropic.PromptDir != "" {
		base.Anthropic.PromptDir = override.Anthropic.PromptDir
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Path: "data/listingwatcher.db"},
		Watcher:  WatcherConfig{IntervalSeconds: 45},
		Telegram: TelegramConfig{
			UpbitImagePath:   "assets/upbit_listing_image.jpg",
			BithumbImagePath: "assets/bithumb_listing_image.jpg",
		},
		Anthropic: AnthropicConfig{Model: "claude-opus-4-20250514"},
		Logging:   LoggingConfig{Level: "info"},
	}
}
