package ota

import (
	"time"

	"github.com/moffa90/go-mw4ota/protocol"
)

// Config holds the updater configuration.
type Config struct {
	// ProgressCallback is called during an update to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// ReadTimeout bounds the firmware version read
	ReadTimeout time.Duration

	// WriteTimeout bounds every confirmed write (chunks and control codes)
	WriteTimeout time.Duration

	// AckTimeout bounds the wait for the start acknowledgment and, with
	// ChunkAck, for every per-chunk acknowledgment
	AckTimeout time.Duration

	// EndTimeout bounds the wait for the device to confirm END.
	// The device may validate the whole image before answering.
	EndTimeout time.Duration

	// FetchTimeout bounds the manifest fetch and the image fetch, each
	FetchTimeout time.Duration

	// ChunkSize is the maximum image bytes per data write.
	// Must be between 1 and protocol.MaxPayloadSize; checked at session start.
	ChunkSize int

	// WriteInterval is the minimum spacing between chunk writes (0 = none)
	WriteInterval time.Duration

	// ChunkAck makes the engine wait for one ACK notification per chunk
	// instead of relying on write confirmation alone
	ChunkAck bool

	// SettleTimeout is how long the eager engine listens, after the last
	// chunk, for a first chunk ACK before writing END. Once a chunk ACK has
	// been seen, every chunk's ACK is awaited before END.
	SettleTimeout time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		ReadTimeout:   5 * time.Second,
		WriteTimeout:  5 * time.Second,
		AckTimeout:    10 * time.Second,
		EndTimeout:    30 * time.Second,
		FetchTimeout:  time.Minute,
		ChunkSize:     protocol.DefaultChunkSize,
		SettleTimeout: 250 * time.Millisecond,
	}
}

// Option is a functional option for configuring the Updater.
type Option func(*Config)

// WithProgressCallback sets a callback function to track update progress.
//
// Example:
//
//	up := ota.New(h, src,
//	    ota.WithProgressCallback(func(p ota.Progress) {
//	        fmt.Printf("%d%% complete\n", p.Percent)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the updater operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the read, write and acknowledgment timeouts.
//
// Example:
//
//	up := ota.New(h, src, ota.WithTimeout(10*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = timeout
		c.WriteTimeout = timeout
		c.AckTimeout = timeout
	}
}

// WithReadTimeout sets the version read timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = timeout
	}
}

// WithWriteTimeout sets the confirmed write timeout.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = timeout
	}
}

// WithAckTimeout sets how long to wait for start and chunk acknowledgments.
func WithAckTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.AckTimeout = timeout
	}
}

// WithEndTimeout sets how long to wait for the device to confirm END.
func WithEndTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.EndTimeout = timeout
	}
}

// WithFetchTimeout sets the manifest and image fetch timeout.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.FetchTimeout = timeout
	}
}

// WithChunkSize sets the maximum image bytes per data write.
// Default is protocol.DefaultChunkSize. Out-of-range values are rejected
// when a transfer starts, with ErrInvalidChunkSize.
//
// Example:
//
//	up := ota.New(h, src, ota.WithChunkSize(244))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		c.ChunkSize = size
	}
}

// WithWriteInterval spaces chunk writes at least d apart.
// Some BLE stacks drop writes when the peripheral is flooded.
func WithWriteInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.WriteInterval = d
		}
	}
}

// WithChunkAck makes the engine wait for an ACK notification after every chunk.
// Default is false: a confirmed write paces the transfer.
func WithChunkAck(enabled bool) Option {
	return func(c *Config) {
		c.ChunkAck = enabled
	}
}

// WithSettleTimeout sets how long the eager engine waits after the last chunk
// for a device that acknowledges chunks to send its first ACK.
// Default is 250ms. Devices that acknowledge slower than that should use
// WithChunkAck(true).
func WithSettleTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.SettleTimeout = d
		}
	}
}
