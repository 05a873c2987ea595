package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Steem    SteemConfig    `yaml:"steem"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Telegram TelegramConfig `yaml:"telegram"`
	API      APIConfig      `yaml:"api"`
	Listener ListenerConfig `yaml:"listener"`
}

// SteemConfig contains Steem blockchain configuration
type SteemConfig struct {
	APIURL       string   `yaml:"api_url"`
	EstimatorURL string   `yaml:"estimator_url"`
	StartBlock   int64    `yaml:"start_block"`
	Accounts     []string `yaml:"accounts"`
	TrackAll     bool     `yaml:"track_all"` // Ingest operations for every acting account
}

// MongoDBConfig contains MongoDB connection configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// TelegramConfig contains Telegram bot configuration
type TelegramConfig struct {
	Enabled          bool     `yaml:"enabled"`
	BotToken         string   `yaml:"bot_token"`
	ChannelID        string   `yaml:"channel_id"`
	NotifyOperations []string `yaml:"notify_operations"` // Empty means notify all operations
}

// APIConfig contains API server configuration
type APIConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

// ListenerConfig contains block listener tuning
type ListenerConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"` // How often to check for a new head block
	MaxBackoffSeconds   int `yaml:"max_backoff_seconds"`   // Cap for the fetch-error backoff
}

// LoadConfig reads a YAML config file and applies environment overrides.
// Environment variables win so deployments can keep secrets out of the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&config)
	config.applyDefaults()

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("STEEM_API_URL"); v != "" {
		config.Steem.APIURL = v
	}
	if v := os.Getenv("ESTIMATOR_URL"); v != "" {
		config.Steem.EstimatorURL = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		config.MongoDB.URI = v
	}
	if v := os.Getenv("MONGODB_DATABASE"); v != "" {
		config.MongoDB.Database = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		config.Telegram.BotToken = v
	}
}

func (c *Config) applyDefaults() {
	if c.Steem.APIURL == "" {
		c.Steem.APIURL = "https://api.steemit.com"
	}
	if c.Listener.PollIntervalSeconds <= 0 {
		c.Listener.PollIntervalSeconds = 3
	}
	if c.Listener.MaxBackoffSeconds <= 0 {
		c.Listener.MaxBackoffSeconds = 30
	}
	if c.API.Port == "" {
		c.API.Port = "8080"
	}
}
