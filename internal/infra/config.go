package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. LoadConfig reads the yaml
// file, then environment variables override the sensitive values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Watch struct {
		Symbols            []string `yaml:"symbols"`
		RefreshIntervalSec int      `yaml:"refresh_interval_sec"`
	} `yaml:"watch"`

	Feed struct {
		Mode string `yaml:"mode"` // "rest" or "stream"
		REST struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"rest"`
		Stream struct {
			WSURL string `yaml:"ws_url"`
		} `yaml:"stream"`
	} `yaml:"feed"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Alerts []AlertRuleConfig `yaml:"alerts"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// AlertRuleConfig declares one price alert in the config file.
type AlertRuleConfig struct {
	Symbol     string `yaml:"symbol"`
	Threshold  string `yaml:"threshold"` // decimal string, no floats in config
	Persistent bool   `yaml:"persistent"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if len(c.Watch.Symbols) == 0 {
		return fmt.Errorf("at least one watch symbol is required")
	}
	if c.Watch.RefreshIntervalSec <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}

	switch c.Feed.Mode {
	case "", "rest":
		if c.Feed.REST.BaseURL == "" {
			return fmt.Errorf("feed.rest.base_url is required in rest mode")
		}
	case "stream":
		url := c.Feed.Stream.WSURL
		if url == "" || (!hasPrefix(url, "ws://") && !hasPrefix(url, "wss://")) {
			return fmt.Errorf("invalid stream WS URL: %s", url)
		}
	default:
		return fmt.Errorf("unknown feed mode: %s", c.Feed.Mode)
	}

	return nil
}

// FeedMode returns the effective feed mode, defaulting to "rest".
func (c *Config) FeedMode() string {
	if c.Feed.Mode == "" {
		return "rest"
	}
	return c.Feed.Mode
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values.
// Env always wins for secrets.
func overrideWithEnv(cfg *Config) {
	// Security warning: secrets belong in the environment, not the file.
	if cfg.Feed.REST.APIKey != "" {
		// Using fmt instead of slog: the logger is not built yet.
		fmt.Println("⚠️  SECURITY WARNING: API key found in config file.")
		fmt.Println("   Recommendation: use the CRYPTO_WATCH_API_KEY environment variable instead.")
	}

	if key := os.Getenv("CRYPTO_WATCH_API_KEY"); key != "" {
		cfg.Feed.REST.APIKey = key
	}
}
