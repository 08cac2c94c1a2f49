// Package config provides configuration management for the strategy grid
// server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultPriceTick is the option limit price increment.
	defaultPriceTick = 0.05
	// defaultAuthTTL is how long cached OAuth tokens stay usable. E*TRADE
	// access tokens expire at midnight US Eastern; 12 hours is the
	// conservative bound the server has always used.
	defaultAuthTTL = 12 * time.Hour
	// defaultPort is the dashboard listen port.
	defaultPort = 8000
)

// defaultProfitTargets are the exit suggestion percentages offered when no
// targets are configured.
var defaultProfitTargets = []float64{30, 40, 50, 60}

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Broker      BrokerConfig      `yaml:"broker"`
	Auth        AuthConfig        `yaml:"auth"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Engine      EngineConfig      `yaml:"engine"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// BrokerConfig defines brokerage API settings.
type BrokerConfig struct {
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
	Sandbox        bool   `yaml:"sandbox"`
	APIEndpoint    string `yaml:"api_endpoint"` // override, normally derived from sandbox
}

// AuthConfig defines OAuth token cache settings.
type AuthConfig struct {
	CachePath string `yaml:"cache_path"` // default ~/.optlens/auth.json
	TokenTTL  string `yaml:"token_ttl"`  // duration string, default 12h
}

// DashboardConfig defines the HTTP server settings.
type DashboardConfig struct {
	Port        int    `yaml:"port"`
	AuthToken   string `yaml:"auth_token"` // optional static token for the grid UI
	OpenBrowser bool   `yaml:"open_browser"`
}

// EngineConfig defines strategy grid tunables.
type EngineConfig struct {
	ProfitTargets []float64 `yaml:"profit_targets"`
	PriceTick     float64   `yaml:"price_tick"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables so keys can live outside the file
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	if c.Environment.Mode == "live" {
		if c.Broker.ConsumerKey == "" {
			return fmt.Errorf("broker.consumer_key is required in live mode")
		}
		if c.Broker.ConsumerSecret == "" {
			return fmt.Errorf("broker.consumer_secret is required in live mode")
		}
	}

	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be between 1 and 65535")
	}

	if c.Engine.PriceTick <= 0 {
		return fmt.Errorf("engine.price_tick must be > 0")
	}
	if len(c.Engine.ProfitTargets) == 0 {
		return fmt.Errorf("engine.profit_targets must not be empty")
	}
	for _, target := range c.Engine.ProfitTargets {
		if target <= 0 || target > 100 {
			return fmt.Errorf("engine.profit_targets entries must be in (0,100], got %.1f", target)
		}
	}

	if _, err := time.ParseDuration(c.Auth.TokenTTL); err != nil {
		return fmt.Errorf("auth.token_ttl invalid: %w", err)
	}

	return nil
}

// IsPaper returns true when running against the mock data provider.
func (c *Config) IsPaper() bool {
	return c.Environment.Mode == "paper"
}

// TokenTTL returns the configured token cache lifetime.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return defaultAuthTTL
	}
	return d
}

// normalize fills unset fields with defaults.
func (c *Config) normalize() {
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = defaultPort
	}
	if c.Engine.PriceTick == 0 {
		c.Engine.PriceTick = defaultPriceTick
	}
	if len(c.Engine.ProfitTargets) == 0 {
		c.Engine.ProfitTargets = append([]float64(nil), defaultProfitTargets...)
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = defaultAuthTTL.String()
	}
	if c.Auth.CachePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Auth.CachePath = home + "/.optlens/auth.json"
		} else {
			c.Auth.CachePath = ".optlens/auth.json"
		}
	}
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
}
