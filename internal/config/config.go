// Package config provides YAML-based configuration loading for the hub and
// its clients.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "hud.yaml"

// Config is the top-level configuration, loaded from hud.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Journal   JournalConfig   `yaml:"journal"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls where the hub listens.
type ServerConfig struct {
	Host       string `yaml:"host"`
	PortMin    int    `yaml:"port_min"`
	PortMax    int    `yaml:"port_max"`
	SendBuffer int    `yaml:"send_buffer"`
}

// DiscoveryConfig controls how clients find the hub.
type DiscoveryConfig struct {
	Host             string `yaml:"host"`
	PortMin          int    `yaml:"port_min"`
	PortMax          int    `yaml:"port_max"`
	AttemptTimeoutMS int    `yaml:"attempt_timeout_ms"`
	ReconnectDelayMS int    `yaml:"reconnect_delay_ms"`
	BackoffMS        int    `yaml:"backoff_ms"`
}

// JournalConfig holds the audit journal settings. Driver "" disables it.
type JournalConfig struct {
	Driver          string      `yaml:"driver"`
	DSN             string      `yaml:"dsn"`
	MySQL           MySQLConfig `yaml:"mysql"`
	RetentionDays   int         `yaml:"retention_days"`
	CleanupSchedule string      `yaml:"cleanup_schedule"`
}

// MySQLConfig builds a DSN when JournalConfig.DSN is empty.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// NotifyConfig routes new pending requests to humans.
type NotifyConfig struct {
	MinPriority string        `yaml:"min_priority"`
	Command     string        `yaml:"command"`
	Slack       SlackConfig   `yaml:"slack"`
	Discord     DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// LogConfig selects slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.PortMin == 0 {
		c.Server.PortMin = 8080
	}
	if c.Server.PortMax == 0 {
		c.Server.PortMax = 8199
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = 64
	}
	if c.Discovery.Host == "" {
		c.Discovery.Host = c.Server.Host
	}
	if c.Discovery.PortMin == 0 {
		c.Discovery.PortMin = c.Server.PortMin
	}
	if c.Discovery.PortMax == 0 {
		c.Discovery.PortMax = c.Server.PortMax
	}
	if c.Discovery.AttemptTimeoutMS == 0 {
		c.Discovery.AttemptTimeoutMS = 500
	}
	if c.Discovery.ReconnectDelayMS == 0 {
		c.Discovery.ReconnectDelayMS = 2000
	}
	if c.Discovery.BackoffMS == 0 {
		c.Discovery.BackoffMS = 5000
	}
	if c.Journal.Driver == "mysql" {
		if c.Journal.MySQL.Host == "" {
			c.Journal.MySQL.Host = "127.0.0.1"
		}
		if c.Journal.MySQL.Port == 0 {
			c.Journal.MySQL.Port = 3306
		}
		if c.Journal.MySQL.User == "" {
			c.Journal.MySQL.User = "root"
		}
		if c.Journal.MySQL.Database == "" {
			c.Journal.MySQL.Database = "agenthud"
		}
	}
	if c.Journal.Driver == "sqlite" && c.Journal.DSN == "" {
		c.Journal.DSN = "file::memory:?cache=shared"
	}
	if c.Journal.RetentionDays == 0 {
		c.Journal.RetentionDays = 7
	}
	if c.Journal.CleanupSchedule == "" {
		c.Journal.CleanupSchedule = "0 3 * * *"
	}
	if c.Notify.MinPriority == "" {
		c.Notify.MinPriority = "High"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.PortMin < 1 || c.Server.PortMax > 65535 || c.Server.PortMin > c.Server.PortMax {
		errs = append(errs, fmt.Sprintf("server port range %d..%d is invalid", c.Server.PortMin, c.Server.PortMax))
	}
	if c.Discovery.PortMin < 1 || c.Discovery.PortMax > 65535 || c.Discovery.PortMin > c.Discovery.PortMax {
		errs = append(errs, fmt.Sprintf("discovery port range %d..%d is invalid", c.Discovery.PortMin, c.Discovery.PortMax))
	}
	if c.Server.SendBuffer < 0 {
		errs = append(errs, "server.send_buffer must not be negative")
	}
	if c.Discovery.AttemptTimeoutMS < 0 || c.Discovery.ReconnectDelayMS < 0 || c.Discovery.BackoffMS < 0 {
		errs = append(errs, "discovery timings must not be negative")
	}
	switch c.Journal.Driver {
	case "", "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("journal.driver %q must be sqlite or mysql", c.Journal.Driver))
	}
	if c.Journal.RetentionDays < 0 {
		errs = append(errs, "journal.retention_days must not be negative")
	}
	switch strings.ToLower(c.Notify.MinPriority) {
	case "low", "medium", "high", "critical":
	default:
		errs = append(errs, fmt.Sprintf("notify.min_priority %q must be low, medium, high or critical", c.Notify.MinPriority))
	}
	if (c.Notify.Slack.BotToken == "") != (c.Notify.Slack.ChannelID == "") {
		errs = append(errs, "notify.slack needs both bot_token and channel_id")
	}
	if (c.Notify.Discord.BotToken == "") != (c.Notify.Discord.ChannelID == "") {
		errs = append(errs, "notify.discord needs both bot_token and channel_id")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
