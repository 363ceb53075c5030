package alerting

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines runway alerting configuration.
type Config struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Interval   string `yaml:"interval"`
	Cooldown   string `yaml:"cooldown"`
	Template   string `yaml:"template"`
}

// LoadConfig loads config from yaml or env. ALERTING_CONFIG names the yaml
// file; env vars fill whatever the file leaves empty.
func LoadConfig() (Config, error) {
	cfg := Config{}

	if path := os.Getenv("ALERTING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv("ALERTING_WEBHOOK_URL")
	}
	if cfg.WebhookURL != "" {
		cfg.Enabled = true
	}
	if cfg.Interval == "" {
		cfg.Interval = os.Getenv("ALERTING_INTERVAL")
	}
	if cfg.Cooldown == "" {
		cfg.Cooldown = os.Getenv("ALERTING_COOLDOWN")
	}
	return cfg, nil
}

// ParseInterval returns the configured scan interval, or the fallback.
func (c Config) ParseInterval(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(c.Interval); err == nil && d > 0 {
		return d
	}
	return fallback
}

// ParseCooldown returns the configured cooldown, or the fallback.
func (c Config) ParseCooldown(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(c.Cooldown); err == nil && d > 0 {
		return d
	}
	return fallback
}
