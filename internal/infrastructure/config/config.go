package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration.
type Config struct {
	Server        ServerConfig
	Registry      RegistryConfig
	Cache         CacheConfig
	SecureStorage SecureStorageConfig
	Signature     SignatureConfig
	Pinning       PinningConfig
	Logging       LogConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds host gateway HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// RegistryConfig holds mini-app registry endpoint configuration.
type RegistryConfig struct {
	BaseURL         string `envconfig:"REGISTRY_BASE_URL" yaml:"base_url"`
	HostID          string `envconfig:"REGISTRY_HOST_ID" yaml:"host_id"`
	SubscriptionKey string `envconfig:"REGISTRY_SUBSCRIPTION_KEY" yaml:"subscription_key"`
	Preview         bool   `envconfig:"REGISTRY_PREVIEW" default:"false" yaml:"preview"`
}

// CacheConfig holds on-disk bundle cache configuration.
type CacheConfig struct {
	Root string `envconfig:"CACHE_ROOT" yaml:"root"`
}

// SecureStorageConfig holds per-app key-value storage configuration.
type SecureStorageConfig struct {
	// Backend selects the backing store: "file", "bolt", or "sqlite".
	Backend       string `envconfig:"SECURE_STORAGE_BACKEND" default:"file" yaml:"backend"`
	FileSizeLimit int64  `envconfig:"SECURE_STORAGE_LIMIT" default:"2000000" yaml:"file_size_limit"`
}

// SignatureConfig controls archive signature verification.
type SignatureConfig struct {
	Enabled   bool              `envconfig:"SIGNATURE_ENABLED" default:"true" yaml:"enabled"`
	Mandatory bool              `envconfig:"SIGNATURE_MANDATORY" default:"false" yaml:"mandatory"`
	Keys      map[string]string `envconfig:"SIGNATURE_KEYS" yaml:"keys"`
}

// PinningConfig holds certificate pinning configuration. Pins are base64
// SPKI SHA-256 digests. The pinning layer requires two pins; a fixed
// placeholder backup is substituted when none is configured.
type PinningConfig struct {
	Host    string `envconfig:"PINNING_HOST" yaml:"host"`
	Primary string `envconfig:"PINNING_PRIMARY" yaml:"primary"`
	Backup  string `envconfig:"PINNING_BACKUP" yaml:"backup"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds gateway rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MINIAPP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Cache.Root == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve cache root: %w", err)
		}
		cfg.Cache.Root = dir
	}
	return &cfg, nil
}

// LoadFile loads environment configuration and overlays values from a YAML
// file. File values win over environment values for fields they set.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	root, _ := os.UserCacheDir()
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Cache: CacheConfig{
			Root: root,
		},
		SecureStorage: SecureStorageConfig{
			Backend:       "file",
			FileSizeLimit: 2_000_000,
		},
		Signature: SignatureConfig{
			Enabled:   true,
			Mandatory: false,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
