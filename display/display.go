// Package display writes text and brightness to the costume display.
//
// Display writes are single confirmed writes with no protocol state. They
// share the link with firmware updates, so a write attempted during an
// update fails with transport.ErrBusy:
//
//	d := display.New(h)
//	if err := d.SetText(ctx, "HELLO"); err != nil {
//	    log.Fatal(err)
//	}
//	_ = d.SetBrightness(ctx, 128)
package display

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
)

// DefaultTimeout bounds every display read and write.
const DefaultTimeout = 5 * time.Second

// ErrInvalidText is returned for text that is not valid UTF-8 or does not
// fit in one characteristic value.
var ErrInvalidText = errors.New("invalid display text")

// Logger is satisfied by ota.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
}

// Display drives the text display service.
type Display struct {
	handle  *transport.Handle
	timeout time.Duration
	logger  Logger
}

// Option configures a Display.
type Option func(*Display)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(disp *Display) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l Logger) Option {
	return func(disp *Display) { disp.logger = l }
}

// New creates a Display on the link behind h.
func New(h *transport.Handle, opts ...Option) *Display {
	if h == nil {
		panic("handle cannot be nil")
	}
	d := &Display{handle: h, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetText replaces the displayed text. The empty string clears it.
func (d *Display) SetText(ctx context.Context, text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidText)
	}
	if len(text) > protocol.MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidText, len(text), protocol.MaxPayloadSize)
	}
	return d.write(ctx, "set text", protocol.EndpointText, []byte(text))
}

// SetBrightness sets the display brightness, 0 to protocol.MaxBrightness.
func (d *Display) SetBrightness(ctx context.Context, level int) error {
	value, err := protocol.EncodeBrightness(level)
	if err != nil {
		return err
	}
	return d.write(ctx, "set brightness", protocol.EndpointBrightness, value)
}

// Text reads the text currently shown.
func (d *Display) Text(ctx context.Context) (string, error) {
	link, release, err := d.handle.Acquire("read text")
	if err != nil {
		return "", err
	}
	defer release()

	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	value, err := link.ReadValue(rctx, protocol.EndpointText)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (d *Display) write(ctx context.Context, op string, ep protocol.Endpoint, value []byte) error {
	link, release, err := d.handle.Acquire(op)
	if err != nil {
		return err
	}
	defer release()

	wctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.logger != nil {
		d.logger.Debug(op, "endpoint", ep.String(), "bytes", len(value))
	}
	return link.WriteValueConfirmed(wctx, ep, value)
}
