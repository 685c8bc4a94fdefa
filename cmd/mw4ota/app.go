package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/moffa90/go-mw4ota/display"
	"github.com/moffa90/go-mw4ota/internal/config"
	"github.com/moffa90/go-mw4ota/manifest"
	"github.com/moffa90/go-mw4ota/ota"
	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
	"github.com/moffa90/go-mw4ota/transport/ble"
	"github.com/moffa90/go-mw4ota/transport/simulator"
)

type options struct {
	simulate     bool
	imagePath    string
	imageVersion uint32
}

// app holds what every command shares.
type app struct {
	cfg       *config.Config
	log       *logger
	connector transport.Connector
	source    manifest.Source
}

func newApp(cfg *config.Config, log *logger, opts options) *app {
	a := &app{cfg: cfg, log: log}

	if opts.simulate {
		a.connector = simulatedConnector{}
	} else {
		a.connector = ble.New(ble.Config{
			Address:        cfg.Device.Address,
			Name:           cfg.Device.Name,
			ScanTimeout:    cfg.Device.ScanTimeout,
			ConnectTimeout: cfg.Device.ConnectTimeout,
			Logger:         log,
		})
	}

	if opts.imagePath != "" {
		a.source = manifest.NewFileSource(opts.imagePath, opts.imageVersion)
	} else {
		client := manifest.NewClient(cfg.Manifest.URL,
			manifest.WithImageScheme(cfg.Manifest.ImageScheme),
			manifest.WithMaxImageSize(cfg.Manifest.MaxImageSize),
		)
		a.source = manifest.NewBreaker(client, cfg.Manifest.Breaker, log)
	}

	return a
}

// simulatedConnector starts a fresh simulated device per connection, so a
// retry sees the same initial state as the first attempt.
type simulatedConnector struct {
	opts []simulator.Option
}

func (c simulatedConnector) Connect(ctx context.Context) (transport.Session, error) {
	opts := append([]simulator.Option{
		simulator.WithVersion(0),
		simulator.WithText("MW4"),
		simulator.WithWriteLatency(2 * time.Millisecond),
	}, c.opts...)
	return simulator.New(opts...).Connect(ctx)
}

// withLink connects, runs fn on an exclusive handle and disconnects.
func (a *app) withLink(ctx context.Context, fn func(h *transport.Handle) error) error {
	sess, err := a.connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			a.log.Debug("disconnect failed", "error", err)
		}
	}()
	return fn(transport.NewHandle(sess))
}

func (a *app) updaterOptions(progress ota.ProgressCallback) []ota.Option {
	t := a.cfg.Transfer
	return []ota.Option{
		ota.WithLogger(a.log),
		ota.WithProgressCallback(progress),
		ota.WithChunkSize(t.ChunkSize),
		ota.WithReadTimeout(t.ReadTimeout),
		ota.WithWriteTimeout(t.WriteTimeout),
		ota.WithAckTimeout(t.AckTimeout),
		ota.WithEndTimeout(t.EndTimeout),
		ota.WithFetchTimeout(t.FetchTimeout),
		ota.WithWriteInterval(t.WriteInterval),
		ota.WithChunkAck(t.ChunkAck),
		ota.WithSettleTimeout(t.SettleTimeout),
	}
}

// update runs whole-update attempts until one succeeds or the attempts are spent.
func (a *app) update(ctx context.Context) error {
	return retry(ctx, a.cfg.Retry.Attempts, a.cfg.Retry.Backoff, a.log, func(attempt int) error {
		return a.withLink(ctx, func(h *transport.Handle) error {
			bar := newProgressBar(a.log)
			defer bar.stop()

			res, err := ota.New(h, a.source, a.updaterOptions(bar.update)...).Update(ctx)
			if err != nil {
				return err
			}
			report(res)
			return nil
		})
	})
}

func report(res *ota.Result) {
	if res.Skipped {
		pterm.Info.Println(fmt.Sprintf("device runs version %d, manifest offers %d: nothing to do",
			res.DeviceVersion, res.ManifestVersion))
		return
	}
	pterm.Success.Println(fmt.Sprintf("updated from version %d to %d: %d bytes in %d chunks, %s",
		res.DeviceVersion, res.ManifestVersion, res.BytesSent, res.Chunks, res.Elapsed.Round(time.Millisecond)))
}

// retry calls fn up to attempts times. Errors that another attempt cannot
// fix stop the loop early.
func retry(ctx context.Context, attempts int, backoff time.Duration, log *logger, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil || !retryable(ctx, err) || attempt == attempts {
			return err
		}

		log.Warn("update attempt failed, retrying from offset zero",
			"attempt", attempt,
			"attempts", attempts,
			"error", err,
		)

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return err
		}
	}
	return err
}

func retryable(ctx context.Context, err error) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case ota.IsCancelled(err):
		return false
	case errors.Is(err, ota.ErrInvalidChunkSize):
		return false
	case manifest.IsDecodeError(err):
		return false
	default:
		return true
	}
}

func (a *app) setText(ctx context.Context, text string) error {
	return a.withLink(ctx, func(h *transport.Handle) error {
		d := display.New(h, display.WithLogger(a.log))

		if current, err := d.Text(ctx); err == nil {
			a.log.Info("current display text", "text", current)
		}
		if err := d.SetText(ctx, text); err != nil {
			return err
		}
		pterm.Success.Println(fmt.Sprintf("display text set to %q", text))
		return nil
	})
}

func (a *app) setBrightness(ctx context.Context, level int) error {
	return a.withLink(ctx, func(h *transport.Handle) error {
		if err := display.New(h, display.WithLogger(a.log)).SetBrightness(ctx, level); err != nil {
			return err
		}
		pterm.Success.Println(fmt.Sprintf("display brightness set to %d", level))
		return nil
	})
}

func (a *app) printVersion(ctx context.Context) error {
	pterm.Info.Println(fmt.Sprintf("mw4ota %s (control protocol %s)", version, protocol.ProtocolVersion))
	return a.withLink(ctx, func(h *transport.Handle) error {
		v, err := ota.New(h, nil, ota.WithReadTimeout(a.cfg.Transfer.ReadTimeout)).DeviceVersion(ctx)
		if err != nil {
			return fmt.Errorf("read device version: %w", err)
		}
		pterm.Info.Println(fmt.Sprintf("device firmware version %d", v))
		return nil
	})
}
