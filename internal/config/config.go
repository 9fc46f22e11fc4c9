// Package config provides configuration management for the relay.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override config keys.
const EnvPrefix = "FORTARELAY_"

// Config represents the relay configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Forta    FortaConfig    `koanf:"forta"`
	Discord  DiscordConfig  `koanf:"discord"`
	Explorer ExplorerConfig `koanf:"explorer"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings for `fortarelay serve`
type ServerConfig struct {
	Address      string        `koanf:"address"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// FortaConfig holds the public alerts API settings
type FortaConfig struct {
	Endpoint     string        `koanf:"endpoint"`
	ChainID      int64         `koanf:"chain_id"`
	PageSize     int           `koanf:"page_size"`
	CreatedSince int64         `koanf:"created_since"`
	Timeout      time.Duration `koanf:"timeout"` // 0 = no client timeout
}

// DiscordConfig holds webhook delivery settings
type DiscordConfig struct {
	// SecretName is the key in the event's secrets holding the webhook URL.
	SecretName string `koanf:"secret_name"`
	// WebhookURL is injected as that secret for bare Forta webhook bodies.
	WebhookURL string        `koanf:"webhook_url"`
	RetryDelay time.Duration `koanf:"retry_delay"`
	Timeout    time.Duration `koanf:"timeout"` // 0 = no client timeout
}

// ExplorerConfig controls the transaction link in messages
type ExplorerConfig struct {
	TxURL string `koanf:"tx_url"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

// LoadOptions configures how configuration is loaded
type LoadOptions struct {
	ConfigPath string
	// Optional skips a missing ConfigPath instead of failing, so a file
	// that is about to be created can be named up front.
	Optional bool
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Forta: FortaConfig{
			Endpoint: "https://api.forta.network/graphql",
			ChainID:  1,
			PageSize: 100,
		},
		Discord: DiscordConfig{
			SecretName: "FortaSentinelTestingDiscord",
			RetryDelay: 5 * time.Second,
		},
		Explorer: ExplorerConfig{
			TxURL: "https://etherscan.io/tx/",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file and environment
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else if opts.ConfigPath != "" && !opts.Optional {
		return nil, fmt.Errorf("config file %q: %w", configPath, err)
	}

	// FORTARELAY_DISCORD_WEBHOOK_URL -> discord.webhook_url
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return envToKey(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	if c.Forta.Endpoint == "" {
		return fmt.Errorf("forta.endpoint is required")
	}
	if u, err := url.Parse(c.Forta.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("forta.endpoint %q must be an http(s) URL", c.Forta.Endpoint)
	}
	if c.Forta.PageSize <= 0 {
		return fmt.Errorf("forta.page_size must be positive, got %d", c.Forta.PageSize)
	}
	if c.Forta.Timeout < 0 || c.Discord.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Discord.SecretName == "" {
		return fmt.Errorf("discord.secret_name is required")
	}
	if c.Discord.RetryDelay <= 0 {
		return fmt.Errorf("discord.retry_delay must be positive")
	}
	if c.Explorer.TxURL == "" {
		return fmt.Errorf("explorer.tx_url is required")
	}
	return nil
}

// Save writes the configuration to path as TOML
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap{c}, nil); err != nil {
		return err
	}

	data, err := k.Marshal(toml.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold a webhook URL, which is a credential.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultPath returns the config file used when none is given
func DefaultPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// configDir returns the configuration directory
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fortarelay")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".fortarelay"
	}
	return filepath.Join(home, ".config", "fortarelay")
}

// envToKey converts an environment variable suffix to a config key.
// Only the first underscore separates section from key, so
// DISCORD_RETRY_DELAY -> discord.retry_delay.
func envToKey(s string) string {
	return strings.Replace(strings.ToLower(s), "_", ".", 1)
}

// confmap implements koanf.Provider for the Config struct
type confmap struct {
	cfg *Config
}

func (c confmap) ReadBytes() ([]byte, error) { return nil, nil }
func (c confmap) Read() (map[string]any, error) {
	return map[string]any{
		"server": map[string]any{
			"address":       c.cfg.Server.Address,
			"read_timeout":  c.cfg.Server.ReadTimeout.String(),
			"write_timeout": c.cfg.Server.WriteTimeout.String(),
		},
		"forta": map[string]any{
			"endpoint":      c.cfg.Forta.Endpoint,
			"chain_id":      c.cfg.Forta.ChainID,
			"page_size":     c.cfg.Forta.PageSize,
			"created_since": c.cfg.Forta.CreatedSince,
			"timeout":       c.cfg.Forta.Timeout.String(),
		},
		"discord": map[string]any{
			"secret_name": c.cfg.Discord.SecretName,
			"webhook_url": c.cfg.Discord.WebhookURL,
			"retry_delay": c.cfg.Discord.RetryDelay.String(),
			"timeout":     c.cfg.Discord.Timeout.String(),
		},
		"explorer": map[string]any{
			"tx_url": c.cfg.Explorer.TxURL,
		},
		"logging": map[string]any{
			"level": c.cfg.Logging.Level,
		},
	}, nil
}
