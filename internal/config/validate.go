package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/moffa90/go-mw4ota/protocol"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Device.ScanTimeout < 0 || cfg.Device.ConnectTimeout < 0 {
		return fmt.Errorf("device: timeouts must not be negative")
	}

	// ---- manifest ----

	u, err := url.Parse(cfg.Manifest.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("manifest.url %q must be an absolute http(s) URL", cfg.Manifest.URL)
	}
	if s := cfg.Manifest.ImageScheme; s != "http" && s != "https" {
		return fmt.Errorf("manifest.image_scheme must be http or https, got %q", s)
	}
	if cfg.Manifest.MaxImageSize <= 0 {
		return fmt.Errorf("manifest.max_image_size must be positive")
	}

	// ---- transfer ----

	t := cfg.Transfer
	if t.ChunkSize < 1 || t.ChunkSize > protocol.MaxPayloadSize {
		return fmt.Errorf("transfer.chunk_size must be between 1 and %d, got %d", protocol.MaxPayloadSize, t.ChunkSize)
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"read_timeout", t.ReadTimeout},
		{"write_timeout", t.WriteTimeout},
		{"ack_timeout", t.AckTimeout},
		{"end_timeout", t.EndTimeout},
		{"fetch_timeout", t.FetchTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("transfer.%s must be positive", d.name)
		}
	}
	if t.WriteInterval < 0 {
		return fmt.Errorf("transfer.write_interval must not be negative")
	}
	if t.SettleTimeout < 0 {
		return fmt.Errorf("transfer.settle_timeout must not be negative")
	}

	// ---- retry ----

	if cfg.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff < 0 {
		return fmt.Errorf("retry.backoff must not be negative")
	}

	// ---- watch ----

	if _, err := cron.ParseStandard(cfg.Watch.Schedule); err != nil {
		return fmt.Errorf("watch.schedule %q: %w", cfg.Watch.Schedule, err)
	}

	// ---- logger ----

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logger.level must be debug, info, warn or error, got %q", cfg.Logger.Level)
	}

	return nil
}
