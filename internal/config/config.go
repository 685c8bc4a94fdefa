// Package config loads the mw4ota CLI configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-mw4ota/manifest"
	"github.com/moffa90/go-mw4ota/protocol"
)

// Config is the top-level CLI configuration.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Manifest ManifestConfig `yaml:"manifest"`
	Transfer TransferConfig `yaml:"transfer"`
	Retry    RetryConfig    `yaml:"retry"`
	Watch    WatchConfig    `yaml:"watch"`
	Logger   LoggerConfig   `yaml:"logger"`
}

// DeviceConfig selects the costume controller.
type DeviceConfig struct {
	Address        string        `yaml:"address"`
	Name           string        `yaml:"name"`
	ScanTimeout    time.Duration `yaml:"scan_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// ManifestConfig locates the release manifest.
type ManifestConfig struct {
	URL          string                 `yaml:"url"`
	ImageScheme  string                 `yaml:"image_scheme"`
	MaxImageSize int64                  `yaml:"max_image_size"`
	Breaker      manifest.BreakerConfig `yaml:"breaker"`
}

// TransferConfig tunes the OTA session.
type TransferConfig struct {
	ChunkSize     int           `yaml:"chunk_size"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	AckTimeout    time.Duration `yaml:"ack_timeout"`
	EndTimeout    time.Duration `yaml:"end_timeout"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	WriteInterval time.Duration `yaml:"write_interval"`
	ChunkAck      bool          `yaml:"chunk_ack"`
	SettleTimeout time.Duration `yaml:"settle_timeout"`
}

// RetryConfig controls whole-update retries. Every attempt restarts from offset zero.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// WatchConfig schedules periodic update checks.
type WatchConfig struct {
	// Schedule is a cron expression; descriptors such as "@every 1h" are accepted
	Schedule string `yaml:"schedule"`
}

// LoggerConfig sets the CLI log level.
type LoggerConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Device: DeviceConfig{
			ScanTimeout:    15 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		Manifest: ManifestConfig{
			URL:          manifest.DefaultURL,
			ImageScheme:  manifest.DefaultImageScheme,
			MaxImageSize: manifest.DefaultMaxImageSize,
			Breaker: manifest.BreakerConfig{
				MaxFailures: 3,
				Timeout:     time.Minute,
				Interval:    10 * time.Minute,
			},
		},
		Transfer: TransferConfig{
			ChunkSize:     protocol.DefaultChunkSize,
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  5 * time.Second,
			AckTimeout:    10 * time.Second,
			EndTimeout:    30 * time.Second,
			FetchTimeout:  time.Minute,
			SettleTimeout: 250 * time.Millisecond,
		},
		Retry: RetryConfig{
			Attempts: 1,
			Backoff:  2 * time.Second,
		},
		Watch: WatchConfig{
			Schedule: "@every 1h",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides sets fields from MW4OTA_* environment variables.
// Unparsable numeric values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MW4OTA_DEVICE_ADDRESS"); v != "" {
		cfg.Device.Address = v
	}
	if v := os.Getenv("MW4OTA_DEVICE_NAME"); v != "" {
		cfg.Device.Name = v
	}
	if v := os.Getenv("MW4OTA_MANIFEST_URL"); v != "" {
		cfg.Manifest.URL = v
	}
	if v := os.Getenv("MW4OTA_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Transfer.ChunkSize = n
		}
	}
	if v := os.Getenv("MW4OTA_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
}
