// Package simulator provides an in-memory costume controller.
//
// The simulated device answers the OTA control protocol the way the real
// firmware does, keeps the received image, and can be told to misbehave so
// failure paths can be exercised without hardware:
//
//	dev := simulator.New(
//	    simulator.WithVersion(3),
//	    simulator.WithStartResponse(protocol.ControlNACK),
//	)
//	defer dev.Close()
//	h := transport.NewHandle(dev)
package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
)

// Device is a simulated costume controller. It implements both
// transport.Connector and transport.Session.
type Device struct {
	cfg config

	mu            sync.Mutex
	image         bytes.Buffer
	chunks        []int
	controlWrites []protocol.ControlCode
	text          []byte
	brightness    byte
	started       bool
	transferring  bool
	finished      bool
	dataWrites    int
	pending       [][]byte
	subs          map[protocol.Endpoint]func([]byte)
	closed        bool

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup
}

type config struct {
	version       byte
	startResponse protocol.ControlCode
	startValue    []byte
	endResponse   protocol.ControlCode
	silentStart   bool
	silentEnd     bool
	chunkAcks     bool
	failWriteAt   int
	writeLatency  time.Duration
	notifyDelay   time.Duration
	connectErr    error
	onChunk       func(n int)
	text          string
}

// Option configures a simulated device.
type Option func(*config)

// WithVersion sets the firmware version the device reports.
func WithVersion(v byte) Option {
	return func(c *config) { c.version = v }
}

// WithStartResponse sets the code the device answers START with (default ACK).
func WithStartResponse(code protocol.ControlCode) Option {
	return func(c *config) { c.startResponse = code }
}

// WithStartValue makes the device answer START with a raw control value,
// which need not be well formed. It overrides WithStartResponse.
func WithStartValue(value []byte) Option {
	return func(c *config) { c.startValue = append([]byte(nil), value...) }
}

// WithEndResponse sets the code the device answers END with (default ACK).
func WithEndResponse(code protocol.ControlCode) Option {
	return func(c *config) { c.endResponse = code }
}

// WithSilentStart makes the device ignore START.
func WithSilentStart() Option {
	return func(c *config) { c.silentStart = true }
}

// WithSilentEnd makes the device ignore END.
func WithSilentEnd() Option {
	return func(c *config) { c.silentEnd = true }
}

// WithChunkAcks makes the device notify ACK after every data chunk.
func WithChunkAcks() Option {
	return func(c *config) { c.chunkAcks = true }
}

// WithFailWriteAt makes the n-th data write (1-based) fail at the link layer.
func WithFailWriteAt(n int) Option {
	return func(c *config) { c.failWriteAt = n }
}

// WithWriteLatency delays every confirmed write.
func WithWriteLatency(d time.Duration) Option {
	return func(c *config) { c.writeLatency = d }
}

// WithNotifyDelay delays every notification.
func WithNotifyDelay(d time.Duration) Option {
	return func(c *config) { c.notifyDelay = d }
}

// WithConnectError makes Connect fail.
func WithConnectError(err error) Option {
	return func(c *config) { c.connectErr = err }
}

// WithOnChunk registers a hook called after the n-th data chunk (1-based) is stored.
func WithOnChunk(fn func(n int)) Option {
	return func(c *config) { c.onChunk = fn }
}

// WithText sets the initial display text.
func WithText(s string) Option {
	return func(c *config) { c.text = s }
}

// New creates a simulated device and starts its notification loop.
// Call Close to stop it.
func New(opts ...Option) *Device {
	cfg := config{
		version:       1,
		startResponse: protocol.ControlACK,
		endResponse:   protocol.ControlACK,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Device{
		cfg:        cfg,
		text:       []byte(cfg.text),
		brightness: 50,
		subs:       make(map[protocol.Endpoint]func([]byte)),
		queue:      make(chan []byte, 64),
		done:       make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Connect implements transport.Connector.
func (d *Device) Connect(ctx context.Context) (transport.Session, error) {
	if d.cfg.connectErr != nil {
		return nil, &transport.ConnectError{Device: "simulator", Err: d.cfg.connectErr}
	}
	if err := ctx.Err(); err != nil {
		return nil, &transport.ConnectError{Device: "simulator", Err: err}
	}
	return d, nil
}

// ReadValue implements transport.Session.
func (d *Device) ReadValue(ctx context.Context, ep protocol.Endpoint) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, &transport.TransportError{Op: "read", Endpoint: ep, Err: transport.ErrClosed}
	}

	switch ep {
	case protocol.EndpointVersion:
		return []byte{d.cfg.version}, nil
	case protocol.EndpointText:
		return append([]byte(nil), d.text...), nil
	case protocol.EndpointBrightness:
		return []byte{d.brightness}, nil
	default:
		return nil, &transport.TransportError{Op: "read", Endpoint: ep, Err: errors.New("read not permitted")}
	}
}

// WriteValueConfirmed implements transport.Session.
func (d *Device) WriteValueConfirmed(ctx context.Context, ep protocol.Endpoint, p []byte) error {
	if d.cfg.writeLatency > 0 {
		t := time.NewTimer(d.cfg.writeLatency)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return &transport.TransportError{Op: "write", Endpoint: ep, Err: ctx.Err()}
		}
	}

	if len(p) > protocol.MaxPayloadSize {
		return &transport.TransportError{Op: "write", Endpoint: ep,
			Err: fmt.Errorf("value length %d exceeds %d", len(p), protocol.MaxPayloadSize)}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return &transport.TransportError{Op: "write", Endpoint: ep, Err: transport.ErrClosed}
	}

	var err error
	var hook func(int)
	var chunkNum int
	switch ep {
	case protocol.EndpointData:
		chunkNum, err = d.handleData(p)
		if err == nil {
			hook = d.cfg.onChunk
		}
	case protocol.EndpointControl:
		err = d.handleControl(p)
	case protocol.EndpointText:
		d.text = append(d.text[:0], p...)
	case protocol.EndpointBrightness:
		if len(p) != 1 {
			err = fmt.Errorf("brightness value must be 1 byte, got %d", len(p))
		} else {
			d.brightness = p[0]
		}
	default:
		err = errors.New("write not permitted")
	}
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, v := range pending {
		d.NotifyRaw(v)
	}

	if err != nil {
		return &transport.TransportError{Op: "write", Endpoint: ep, Err: err}
	}
	if hook != nil {
		hook(chunkNum)
	}
	return nil
}

// handleData stores a chunk. Caller holds d.mu.
func (d *Device) handleData(p []byte) (int, error) {
	d.dataWrites++
	if d.cfg.failWriteAt > 0 && d.dataWrites == d.cfg.failWriteAt {
		return 0, errors.New("simulated link failure")
	}
	if !d.transferring {
		return 0, errors.New("no transfer in progress")
	}

	d.image.Write(p)
	d.chunks = append(d.chunks, len(p))

	if d.cfg.chunkAcks {
		d.pending = append(d.pending, protocol.EncodeControl(protocol.ControlACK))
	}
	return len(d.chunks), nil
}

// handleControl runs the device side of the control protocol. Caller holds d.mu.
func (d *Device) handleControl(p []byte) error {
	code, err := protocol.ParseControl(p)
	if err != nil {
		return err
	}
	d.controlWrites = append(d.controlWrites, code)

	switch code {
	case protocol.ControlStart:
		d.image.Reset()
		d.chunks = nil
		d.finished = false
		if d.cfg.silentStart {
			return nil
		}
		if d.cfg.startValue != nil {
			d.started = false
			d.pending = append(d.pending, d.cfg.startValue)
			return nil
		}
		d.started = d.cfg.startResponse == protocol.ControlACK
		d.pending = append(d.pending, protocol.EncodeControl(d.cfg.startResponse))
	case protocol.ControlNOP:
		if d.started {
			d.started = false
			d.transferring = true
		}
	case protocol.ControlEnd:
		d.transferring = false
		if d.cfg.silentEnd {
			return nil
		}
		d.finished = d.cfg.endResponse == protocol.ControlACK || d.cfg.endResponse == protocol.ControlNOP
		d.pending = append(d.pending, protocol.EncodeControl(d.cfg.endResponse))
	}
	return nil
}

// Notify queues an unsolicited control notification, as the firmware does
// when it aborts a transfer on its own.
func (d *Device) Notify(code protocol.ControlCode) {
	d.NotifyRaw(protocol.EncodeControl(code))
}

// NotifyRaw queues an arbitrary control value, which need not be well formed.
func (d *Device) NotifyRaw(value []byte) {
	select {
	case d.queue <- append([]byte(nil), value...):
	case <-d.done:
	}
}

// Subscribe implements transport.Session.
func (d *Device) Subscribe(ctx context.Context, ep protocol.Endpoint, onNotify func([]byte)) (transport.Subscription, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, &transport.TransportError{Op: "subscribe", Endpoint: ep, Err: transport.ErrClosed}
	}
	if ep != protocol.EndpointControl {
		return nil, &transport.TransportError{Op: "subscribe", Endpoint: ep, Err: errors.New("notify not supported")}
	}
	d.subs[ep] = onNotify

	return transport.SubscriptionFunc(func() error {
		d.mu.Lock()
		delete(d.subs, ep)
		d.mu.Unlock()
		return nil
	}), nil
}

// Close implements transport.Session.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	return nil
}

// run delivers queued notifications one at a time.
func (d *Device) run() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case v := <-d.queue:
			if d.cfg.notifyDelay > 0 {
				t := time.NewTimer(d.cfg.notifyDelay)
				select {
				case <-t.C:
				case <-d.done:
					t.Stop()
					return
				}
			}
			d.mu.Lock()
			cb := d.subs[protocol.EndpointControl]
			d.mu.Unlock()
			if cb != nil {
				cb(v)
			}
		}
	}
}

// Image returns a copy of the bytes received since the last START.
func (d *Device) Image() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.image.Bytes()...)
}

// Chunks returns the length of every data chunk received since the last START.
func (d *Device) Chunks() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.chunks...)
}

// ControlWrites returns every control code the host wrote.
func (d *Device) ControlWrites() []protocol.ControlCode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.ControlCode(nil), d.controlWrites...)
}

// Finished reports whether the device accepted END.
func (d *Device) Finished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finished
}

// Subscribed reports whether a control notification handler is registered.
func (d *Device) Subscribed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.subs[protocol.EndpointControl]
	return ok
}

// Text returns the current display text.
func (d *Device) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.text)
}

// Brightness returns the current display brightness.
func (d *Device) Brightness() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.brightness
}
