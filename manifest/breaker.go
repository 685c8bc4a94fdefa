package manifest

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 3
	defaultBreakerTimeout     time.Duration = time.Minute
	defaultBreakerInterval    time.Duration = 10 * time.Minute
)

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// Logger receives circuit state changes.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
}

// Breaker wraps a Source with circuit breaker protection. When the release
// host fails repeatedly, the circuit opens and fetches fail fast with a
// *NetworkError until the open timeout passes.
type Breaker struct {
	inner    Source
	manifest *gobreaker.CircuitBreaker[*Manifest]
	image    *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker wraps inner. Zero config fields take defaults; logger may be nil.
func NewBreaker(inner Source, cfg BreakerConfig, logger Logger) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				if logger != nil {
					logger.Info("circuit breaker state change",
						"breaker", name,
						"from", from.String(),
						"to", to.String(),
					)
				}
			},
			// Cancellation and bad documents say nothing about host health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled) || IsDecodeError(err)
			},
		}
	}

	return &Breaker{
		inner:    inner,
		manifest: gobreaker.NewCircuitBreaker[*Manifest](settings("manifest")),
		image:    gobreaker.NewCircuitBreaker[[]byte](settings("image")),
	}
}

// FetchManifest implements Source.
func (b *Breaker) FetchManifest(ctx context.Context) (*Manifest, error) {
	m, err := b.manifest.Execute(func() (*Manifest, error) {
		return b.inner.FetchManifest(ctx)
	})
	if err != nil {
		return nil, wrapOpen(err)
	}
	return m, nil
}

// FetchImage implements Source.
func (b *Breaker) FetchImage(ctx context.Context, m *Manifest) ([]byte, error) {
	data, err := b.image.Execute(func() ([]byte, error) {
		return b.inner.FetchImage(ctx, m)
	})
	if err != nil {
		return nil, wrapOpen(err)
	}
	return data, nil
}

// State returns the manifest circuit state for monitoring.
func (b *Breaker) State() gobreaker.State {
	return b.manifest.State()
}

func wrapOpen(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &NetworkError{Err: err}
	}
	return err
}

// Compile-time interface checks.
var (
	_ Source = (*Client)(nil)
	_ Source = (*FileSource)(nil)
	_ Source = (*Breaker)(nil)
)
