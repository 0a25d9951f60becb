package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"
)

// Config is the on-disk configuration of the bridge client.
type Config struct {
	Version  string   `yaml:"version"`
	Hub      Endpoint `yaml:"hub"`
	Fleet    Endpoint `yaml:"fleet"`
	Device   Device   `yaml:"device,omitempty"`
	Settings Settings `yaml:"settings,omitempty"`
}

// Endpoint describes how to reach one of the backing services.
type Endpoint struct {
	Server                string `yaml:"server"`
	CAFile                string `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool   `yaml:"insecure-skip-tls-verify,omitempty"`
}

// Device holds the metadata reported during device registration.
type Device struct {
	Name         string `yaml:"name,omitempty"`
	Platform     string `yaml:"platform,omitempty"`
	Model        string `yaml:"model,omitempty"`
	OSVersion    string `yaml:"os-version,omitempty"`
	Manufacturer string `yaml:"manufacturer,omitempty"`
}

type Settings struct {
	OutputFormat  string `yaml:"output-format,omitempty"`
	TokenStorage  string `yaml:"token-storage,omitempty"`
	SyncInterval  string `yaml:"sync-interval,omitempty"`
	MetricsListen string `yaml:"metrics-listen,omitempty"`
	Theme         string `yaml:"theme,omitempty"`
}

// SyncIntervalDuration parses the configured sync interval, returning
// zero when unset so callers can apply their own default.
func (s Settings) SyncIntervalDuration() (time.Duration, error) {
	if s.SyncInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(s.SyncInterval)
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Hub:     Endpoint{Server: "https://hub.fleetware.example.com"},
		Fleet:   Endpoint{Server: "https://fleet.fleetware.example.com"},
		Settings: Settings{
			OutputFormat: "table",
			TokenStorage: "keychain",
			SyncInterval: "15m",
		},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

// LoadOrDefault reads the config at path, falling back to the defaults
// when no file exists yet.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return cfg, err
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	if c.Hub.Server == "" {
		return errors.New("hub server is not configured")
	}
	if c.Fleet.Server == "" {
		return errors.New("fleet server is not configured")
	}
	switch c.Settings.TokenStorage {
	case "", "keychain", "file":
	default:
		return fmt.Errorf("unknown token-storage %q (expected keychain or file)", c.Settings.TokenStorage)
	}
	if _, err := c.Settings.SyncIntervalDuration(); err != nil {
		return fmt.Errorf("invalid sync-interval: %w", err)
	}
	return nil
}
