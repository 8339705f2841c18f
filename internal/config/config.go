// Package config loads and validates the bot configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for the bot.
type Config struct {
	Discord  DiscordConfig  `yaml:"discord"`
	LLM      LLMConfig      `yaml:"llm"`
	Database DatabaseConfig `yaml:"database"`
	Data     DataConfig     `yaml:"data"`
	Replay   ReplayConfig   `yaml:"replay"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DiscordConfig holds gateway credentials.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	AppID    string `yaml:"app_id"`
	// GuildID scopes command registration to a single guild when set.
	// Empty registers commands globally.
	GuildID string `yaml:"guild_id"`
}

// LLMConfig configures the Ollama backend.
type LLMConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	EmbedModel string        `yaml:"embed_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures topic storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DataConfig points at the on-disk definition directories.
type DataConfig struct {
	ConversationsDir string `yaml:"conversations_dir"`
	ScenariosDir     string `yaml:"scenarios_dir"`
}

// ReplayConfig tunes replay runs.
type ReplayConfig struct {
	DefaultDelay time.Duration `yaml:"default_delay"`
	SeedDelay    time.Duration `yaml:"seed_delay"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file, expanding ${ENV_VAR} references before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if c.Discord.BotToken == "" {
		return fmt.Errorf("discord.bot_token is required")
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-oss:120b-cloud"
	}
	if c.LLM.EmbedModel == "" {
		c.LLM.EmbedModel = "nomic-embed-text"
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 2 * time.Minute
	}

	if c.Database.Path == "" {
		c.Database.Path = "lorebot.db"
	}

	if c.Data.ConversationsDir == "" {
		c.Data.ConversationsDir = "data/conversations"
	}
	if c.Data.ScenariosDir == "" {
		c.Data.ScenariosDir = "data/scenarios"
	}

	if c.Replay.DefaultDelay <= 0 {
		c.Replay.DefaultDelay = 2500 * time.Millisecond
	}
	if c.Replay.SeedDelay <= 0 {
		c.Replay.SeedDelay = 1200 * time.Millisecond
	}

	return nil
}
