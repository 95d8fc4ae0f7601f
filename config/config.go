// Package config defines the taskdeck application configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level taskdeck configuration.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Discord   DiscordConfig   `json:"discord" yaml:"discord"`
	Reminders RemindersConfig `json:"reminders" yaml:"reminders"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	DataDir   string          `json:"data_dir" yaml:"data_dir"`
	LogLevel  string          `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":5000"
	// FormBaseURL is the externally reachable base for form links handed
	// out by the slash command, e.g., "http://localhost:5000".
	FormBaseURL string `json:"form_base_url" yaml:"form_base_url"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend       string `json:"backend" yaml:"backend"` // "sqlite" or "mongo"
	MongoURI      string `json:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `json:"mongo_database" yaml:"mongo_database"`
}

// DiscordConfig holds the chat-platform credentials and identifiers.
type DiscordConfig struct {
	BotToken       string `json:"bot_token" yaml:"bot_token"`
	PublicKey      string `json:"public_key" yaml:"public_key"` // interaction signature key, hex
	GuildID        string `json:"guild_id" yaml:"guild_id"`
	DailyChannelID string `json:"daily_channel_id" yaml:"daily_channel_id"`
	EventChannelID string `json:"event_channel_id" yaml:"event_channel_id"` // voice channel for scheduled events
	WebhookURL     string `json:"webhook_url" yaml:"webhook_url"`
}

// RemindersConfig controls the daily reminder posts.
type RemindersConfig struct {
	Schedules []string `json:"schedules" yaml:"schedules"` // cron expressions
	Message   string   `json:"message" yaml:"message"`
}

// AuthConfig controls form-link signing. When FormSecret is empty the form
// link carries the raw user id, matching the legacy behavior.
type AuthConfig struct {
	FormSecret string `json:"form_secret" yaml:"form_secret"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":5000",
			FormBaseURL: "http://localhost:5000",
		},
		Store: StoreConfig{
			Backend:       "sqlite",
			MongoDatabase: "tasks_db",
		},
		Reminders: RemindersConfig{
			Schedules: []string{"30 7 * * *", "0 21 * * *"},
			Message:   "Reminder: Kindly update your everyday tasks by 10 pm!",
		},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML config file, applies environment overrides for the
// secret-bearing fields, and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overlays secrets from the environment so they can stay out of the
// config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		c.Discord.BotToken = v
	}
	if v := os.Getenv("DISCORD_PUBLIC_KEY"); v != "" {
		c.Discord.PublicKey = v
	}
	if v := os.Getenv("WEBHOOK_DAILY"); v != "" {
		c.Discord.WebhookURL = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Store.MongoURI = v
	}
	if v := os.Getenv("FORM_SECRET"); v != "" {
		c.Auth.FormSecret = v
	}
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("store backend mongo requires mongo_uri")
		}
		if c.Store.MongoDatabase == "" {
			return fmt.Errorf("store backend mongo requires mongo_database")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord webhook_url is required")
	}
	return nil
}
