// Package config loads the rewardctl configuration file stored at
// ~/.rewardctl/config.yaml and applies .env and environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigDir is the directory under the user's home for CLI state.
const DefaultConfigDir = ".rewardctl"

// DefaultConfigFile is the config file name within the config directory.
const DefaultConfigFile = "config.yaml"

const (
	DefaultBaseURL = "http://localhost:4300"
	DefaultTimeout = 10 * time.Second
)

// Environment variables that override the file.
const (
	EnvBaseURL = "REWARDS_BASE_URL"
	EnvNonce   = "REWARDS_NONCE"
	EnvTimeout = "REWARDS_TIMEOUT"
)

// Config represents the contents of ~/.rewardctl/config.yaml.
type Config struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Nonce   string        `yaml:"nonce,omitempty" json:"nonce,omitempty"`
	Timeout time.Duration `yaml:"-" json:"-"`
}

// fileConfig is the on-disk form; the timeout is a duration string such as
// "10s" in both YAML and JSON.
type fileConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Nonce   string `yaml:"nonce,omitempty" json:"nonce,omitempty"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Path returns the default config file path.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// LoadFrom reads the config at path, as JSON when the name ends in .json
// and YAML otherwise. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc fileConfig
	if isJSON(path) {
		err = json.Unmarshal(data, &fc)
	} else {
		err = yaml.Unmarshal(data, &fc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg := Default()
	if fc.BaseURL != "" {
		cfg.BaseURL = fc.BaseURL
	}
	cfg.Nonce = fc.Nonce
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parsing config %s: timeout: %w", path, err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	fc := fileConfig{BaseURL: cfg.BaseURL, Nonce: cfg.Nonce}
	if cfg.Timeout > 0 {
		fc.Timeout = cfg.Timeout.String()
	}

	var (
		data []byte
		err  error
	)
	if isJSON(path) {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = yaml.Marshal(fc)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// The nonce is a credential.
	return os.WriteFile(path, data, 0o600)
}

// LoadDotEnv loads KEY=value pairs from a .env file into the process
// environment without overriding variables already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from REWARDS_* variables read through lookup,
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.BaseURL = v
	}
	if v, ok := lookup(EnvNonce); ok {
		c.Nonce = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks that the config can build a backend client.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid base URL %q: want http(s)://host", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
