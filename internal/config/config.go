// Package config provides configuration loading and defaults for delibot.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DiscordConfig holds Discord bot credentials and guild targeting.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
	Prefix  string `yaml:"prefix"`
}

// LoggingConfig controls the logging facility.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Config is the top-level configuration structure for delibot.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoadConfig reads and parses a YAML configuration file from the given path.
// It returns a pointer to the populated Config and any error encountered.
// On error, nil is returned for the config pointer.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a new Config populated with sensible default values.
// Each call returns a distinct instance.
//
// Defaults:
//   - Discord.Prefix = "!"
//   - Logging.Level = "INFO"
//   - Logging.Dir = "logs"
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			Prefix: "!",
		},
		Logging: LoggingConfig{
			Level: "INFO",
			Dir:   "logs",
		},
	}
}

// LoadDotenv loads environment variables from the given dotenv file without
// overriding variables that are already set in the process environment. A
// missing file is not an error; the environment simply stays as-is.
func LoadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Only non-empty environment variable values override existing config values.
//
// Recognized variables:
//   - DISCORD_TOKEN    -> cfg.Discord.Token
//   - DISCORD_GUILD_ID -> cfg.Discord.GuildID
//   - PREFIX           -> cfg.Discord.Prefix
//   - LOG_LEVEL        -> cfg.Logging.Level
func ApplyEnvOverrides(cfg *Config) {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		cfg.Discord.Token = token
	}
	if guildID := os.Getenv("DISCORD_GUILD_ID"); guildID != "" {
		cfg.Discord.GuildID = guildID
	}
	if prefix := os.Getenv("PREFIX"); prefix != "" {
		cfg.Discord.Prefix = prefix
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// ErrMissingToken is returned by Validate when no bot token is configured.
// Startup cannot proceed without one.
var ErrMissingToken = errors.New("config: discord token is not set")

// Validate checks the configuration for fatal problems and normalizes
// recoverable ones. A missing token is fatal. A guild ID that is not a
// numeric snowflake is cleared and reported as a warning so the caller can
// log it; the bot runs without guild targeting in that case. An empty prefix
// falls back to the default.
func (c *Config) Validate() (warnings []string, err error) {
	if c.Discord.Token == "" {
		return nil, ErrMissingToken
	}

	if c.Discord.Prefix == "" {
		c.Discord.Prefix = "!"
	}

	if gid := c.Discord.GuildID; gid != "" && !allDigits(gid) {
		warnings = append(warnings, fmt.Sprintf("ignoring non-numeric guild id %q", gid))
		c.Discord.GuildID = ""
	}

	return warnings, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
