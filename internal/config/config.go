package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	GitHub struct {
		AppID         string `koanf:"app_id"`
		PrivateKey    string `koanf:"private_key"`
		WebhookSecret string `koanf:"webhook_secret"`
	} `koanf:"github"`

	Slack struct {
		BotToken      string `koanf:"bot_token"`
		SigningSecret string `koanf:"signing_secret"`
		BotName       string `koanf:"bot_name"`
	} `koanf:"slack"`

	KV struct {
		RestURL   string `koanf:"rest_url"`
		RestToken string `koanf:"rest_token"`
	} `koanf:"kv"`

	Debug bool `koanf:"debug"`
}

// LoadConfig loads the configuration from a file and the environment
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":    8888,
		"slack.bot_name": "Marites",
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{"./prmarites.toml", "$HOME/.prmarites.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix PRMARITES_
	// PRMARITES_GITHUB__WEBHOOK_SECRET -> github.webhook_secret
	k.Load(env.Provider("PRMARITES_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "PRMARITES_")
		return strings.Replace(strings.ToLower(s), "__", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Private keys arrive from the environment with literal \n escapes
	config.GitHub.PrivateKey = strings.ReplaceAll(config.GitHub.PrivateKey, `\n`, "\n")

	return &config, nil
}

// Validate checks that every field the webhook paths depend on is present.
func (c *Config) Validate() error {
	var missing []string

	if c.GitHub.AppID == "" {
		missing = append(missing, "github.app_id")
	}
	if c.GitHub.PrivateKey == "" {
		missing = append(missing, "github.private_key")
	}
	if c.GitHub.WebhookSecret == "" {
		missing = append(missing, "github.webhook_secret")
	}
	if c.Slack.BotToken == "" {
		missing = append(missing, "slack.bot_token")
	}
	if c.Slack.SigningSecret == "" {
		missing = append(missing, "slack.signing_secret")
	}
	if c.KV.RestURL == "" {
		missing = append(missing, "kv.rest_url")
	}
	if c.KV.RestToken == "" {
		missing = append(missing, "kv.rest_token")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
