package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvEmail    = "DUKE_EMAIL"
	EnvPassword = "DUKE_PASSWORD"
)

// Config holds the application configuration
type Config struct {
	Duke            DukeConfig `yaml:"duke"`
	HomeAssistant   HAConfig   `yaml:"home_assistant,omitempty"`
	MQTT            MQTTConfig `yaml:"mqtt,omitempty"`
	MetricsTextfile string     `yaml:"metrics_textfile,omitempty"` // node_exporter textfile collector path
}

// DukeConfig holds the customer portal account
type DukeConfig struct {
	Email                 string `yaml:"email"`
	Password              string `yaml:"password,omitempty"`
	BaseURL               string `yaml:"base_url,omitempty"`
	UpdateIntervalMinutes int    `yaml:"update_interval_minutes,omitempty"` // minimum 10, default 60
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`           // e.g., "http://yourdomain.local:5050"
	Token        string `yaml:"token"`         // Long-lived access token
	EntityPrefix string `yaml:"entity_prefix"` // e.g., "sensor.duke_energy"
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // default "duke_energy"
}

// Load reads the config file and applies environment overrides
func Load(configPath string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		// Missing file is fine, credentials may come from the environment
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEmail); v != "" {
		c.Duke.Email = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Duke.Password = v
	}
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Validate reports missing or inconsistent settings
func (c *Config) Validate() error {
	var errs []error
	if c.Duke.Email == "" {
		errs = append(errs, fmt.Errorf("duke.email is required (or set %s)", EnvEmail))
	}
	if c.Duke.Password == "" {
		errs = append(errs, fmt.Errorf("duke.password is required (or set %s)", EnvPassword))
	}
	if c.Duke.UpdateIntervalMinutes < 0 {
		errs = append(errs, errors.New("duke.update_interval_minutes must not be negative"))
	}
	if c.HomeAssistant.Enabled && (c.HomeAssistant.URL == "" || c.HomeAssistant.Token == "") {
		errs = append(errs, errors.New("home_assistant.url and home_assistant.token are required when enabled"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when enabled"))
	}
	return errors.Join(errs...)
}

// UpdateInterval returns the configured meter update interval, 0 when unset
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Duke.UpdateIntervalMinutes) * time.Minute
}
