// Package ble implements the transport on a Bluetooth LE central using
// tinygo.org/x/bluetooth.
//
// Connect scans for a peripheral advertising the costume controller
// service, connects, and discovers the OTA and display characteristics:
//
//	sess, err := ble.New(ble.Config{Name: "MW4"}).Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
// Writes are GATT write requests on Linux (BlueZ 5.51 or later), macOS and
// Windows. Every blocking call honors its context. A call abandoned on context expiry
// disconnects the peripheral, so the session must be reopened afterwards.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
)

// Default timeouts.
const (
	DefaultScanTimeout    = 15 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Logger receives connection events. It is satisfied by ota.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
}

// Config selects the peripheral to connect to.
type Config struct {
	// Address restricts the scan to one peripheral (MAC on Linux and
	// Windows, UUID on macOS). Empty accepts any costume controller.
	Address string `yaml:"address"`

	// Name restricts the scan to peripherals whose local name contains it
	Name string `yaml:"name"`

	// ScanTimeout bounds the scan (default DefaultScanTimeout)
	ScanTimeout time.Duration `yaml:"scan_timeout"`

	// ConnectTimeout bounds connection setup (default DefaultConnectTimeout)
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Logger is optional
	Logger Logger `yaml:"-"`
}

// Connector opens sessions to a costume controller over the default adapter.
type Connector struct {
	cfg     Config
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error
}

// New creates a Connector. Zero timeouts take defaults.
func New(cfg Config) *Connector {
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Connector{cfg: cfg, adapter: bluetooth.DefaultAdapter}
}

// Connect implements transport.Connector.
func (c *Connector) Connect(ctx context.Context) (transport.Session, error) {
	target := c.target()

	c.enableOnce.Do(func() { c.enableErr = c.adapter.Enable() })
	if c.enableErr != nil {
		return nil, &transport.ConnectError{Device: target, Err: fmt.Errorf("enable adapter: %w", c.enableErr)}
	}

	serviceUUID, err := bluetooth.ParseUUID(protocol.CostumeControllerServiceUUID)
	if err != nil {
		return nil, &transport.ConnectError{Device: target, Err: err}
	}

	c.logDebug("scanning", "target", target, "timeout", c.cfg.ScanTimeout.String())
	found, err := c.scan(ctx, serviceUUID)
	if err != nil {
		return nil, &transport.ConnectError{Device: target, Err: err}
	}
	target = found.Address.String()
	c.logInfo("found costume controller", "address", target, "name", found.LocalName(), "rssi", found.RSSI)

	device, err := c.connect(ctx, found.Address)
	if err != nil {
		return nil, &transport.ConnectError{Device: target, Err: err}
	}

	chars, err := discover(device)
	if err != nil {
		_ = device.Disconnect()
		return nil, &transport.ConnectError{Device: target, Err: err}
	}

	write, err := newRequestWriter(device, chars)
	if err != nil {
		_ = device.Disconnect()
		return nil, &transport.ConnectError{Device: target, Err: err}
	}

	c.logInfo("connected", "address", target, "characteristics", len(chars))
	return &session{address: target, device: device, chars: chars, write: write}, nil
}

// scan blocks until a matching peripheral advertises or the scan times out.
func (c *Connector) scan(ctx context.Context, serviceUUID bluetooth.UUID) (bluetooth.ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ScanTimeout)
	defer cancel()

	results := make(chan bluetooth.ScanResult, 1)
	scanDone := make(chan error, 1)

	go func() {
		scanDone <- c.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if !r.AdvertisementPayload.HasServiceUUID(serviceUUID) {
				return
			}
			if !matches(c.cfg, r.Address.String(), r.LocalName()) {
				return
			}
			select {
			case results <- r:
				_ = a.StopScan()
			default:
			}
		})
	}()

	select {
	case r := <-results:
		<-scanDone
		return r, nil
	case err := <-scanDone:
		if err == nil {
			err = errors.New("scan stopped before a device was found")
		}
		return bluetooth.ScanResult{}, fmt.Errorf("scan: %w", err)
	case <-ctx.Done():
		_ = c.adapter.StopScan()
		<-scanDone
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return bluetooth.ScanResult{}, fmt.Errorf("no costume controller found within %s", c.cfg.ScanTimeout)
		}
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func (c *Connector) connect(ctx context.Context, addr bluetooth.Address) (bluetooth.Device, error) {
	type result struct {
		device bluetooth.Device
		err    error
	}
	done := make(chan result, 1)
	go func() {
		d, err := c.adapter.Connect(addr, bluetooth.ConnectionParams{
			ConnectionTimeout: bluetooth.NewDuration(c.cfg.ConnectTimeout),
		})
		done <- result{d, err}
	}()

	select {
	case r := <-done:
		return r.device, r.err
	case <-ctx.Done():
		// A late connection is torn down as soon as it completes.
		go func() {
			if r := <-done; r.err == nil {
				_ = r.device.Disconnect()
			}
		}()
		return bluetooth.Device{}, ctx.Err()
	}
}

func (c *Connector) target() string {
	switch {
	case c.cfg.Address != "":
		return c.cfg.Address
	case c.cfg.Name != "":
		return c.cfg.Name
	default:
		return ""
	}
}

func (c *Connector) logDebug(msg string, keysAndValues ...interface{}) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug(msg, keysAndValues...)
	}
}

func (c *Connector) logInfo(msg string, keysAndValues ...interface{}) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Info(msg, keysAndValues...)
	}
}

// matches applies the address and name filters.
func matches(cfg Config, address, name string) bool {
	if cfg.Address != "" && !strings.EqualFold(cfg.Address, address) {
		return false
	}
	if cfg.Name != "" && !strings.Contains(name, cfg.Name) {
		return false
	}
	return true
}

// discover maps every known endpoint to its characteristic. The costume
// controller service is required; the display service is optional.
func discover(device bluetooth.Device) (map[protocol.Endpoint]bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("discover services: %w", err)
	}

	chars := make(map[protocol.Endpoint]bluetooth.DeviceCharacteristic)
	for _, svc := range services {
		found, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("discover characteristics of %s: %w", svc.UUID().String(), err)
		}
		for _, ch := range found {
			if ep, ok := endpointFor(svc.UUID().String(), ch.UUID().String()); ok {
				chars[ep] = ch
			}
		}
	}

	for _, ep := range []protocol.Endpoint{protocol.EndpointVersion, protocol.EndpointData, protocol.EndpointControl} {
		if _, ok := chars[ep]; !ok {
			return nil, fmt.Errorf("characteristic %s (%s) not found", ep, ep.CharacteristicUUID())
		}
	}
	return chars, nil
}

// endpointFor returns the endpoint a discovered characteristic serves.
func endpointFor(serviceUUID, charUUID string) (protocol.Endpoint, bool) {
	for _, ep := range protocol.Endpoints {
		if strings.EqualFold(ep.ServiceUUID(), serviceUUID) && strings.EqualFold(ep.CharacteristicUUID(), charUUID) {
			return ep, true
		}
	}
	return 0, false
}

// requestWriter issues a GATT write request and returns once the peripheral
// has answered it.
type requestWriter func(ctx context.Context, ep protocol.Endpoint, value []byte) error

// session is a connected costume controller.
type session struct {
	address string
	device  bluetooth.Device
	chars   map[protocol.Endpoint]bluetooth.DeviceCharacteristic
	write   requestWriter

	mu     sync.Mutex
	closed bool
}

func (s *session) characteristic(op string, ep protocol.Endpoint) (bluetooth.DeviceCharacteristic, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return bluetooth.DeviceCharacteristic{}, &transport.TransportError{Op: op, Endpoint: ep, Err: transport.ErrClosed}
	}

	ch, ok := s.chars[ep]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, &transport.TransportError{Op: op, Endpoint: ep,
			Err: fmt.Errorf("characteristic %s not available on %s", ep.CharacteristicUUID(), s.address)}
	}
	return ch, nil
}

// ReadValue implements transport.Session.
func (s *session) ReadValue(ctx context.Context, ep protocol.Endpoint) ([]byte, error) {
	ch, err := s.characteristic("read", ep)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, protocol.MaxPayloadSize)
	var n int
	err = s.do(ctx, func() error {
		var rerr error
		n, rerr = ch.Read(buf)
		return rerr
	})
	if err != nil {
		return nil, &transport.TransportError{Op: "read", Endpoint: ep, Err: err}
	}
	return buf[:n], nil
}

// WriteValueConfirmed implements transport.Session with a GATT write request.
func (s *session) WriteValueConfirmed(ctx context.Context, ep protocol.Endpoint, p []byte) error {
	if len(p) > protocol.MaxPayloadSize {
		return &transport.TransportError{Op: "write", Endpoint: ep,
			Err: fmt.Errorf("value length %d exceeds %d", len(p), protocol.MaxPayloadSize)}
	}
	if _, err := s.characteristic("write", ep); err != nil {
		return err
	}

	value := append([]byte(nil), p...)
	err := s.do(ctx, func() error {
		return s.write(ctx, ep, value)
	})
	if err != nil {
		return &transport.TransportError{Op: "write", Endpoint: ep, Err: err}
	}
	return nil
}

// Subscribe implements transport.Session. Notification buffers are copied
// before onNotify sees them.
func (s *session) Subscribe(ctx context.Context, ep protocol.Endpoint, onNotify func([]byte)) (transport.Subscription, error) {
	ch, err := s.characteristic("subscribe", ep)
	if err != nil {
		return nil, err
	}

	err = s.do(ctx, func() error {
		return ch.EnableNotifications(func(buf []byte) {
			onNotify(append([]byte(nil), buf...))
		})
	})
	if err != nil {
		return nil, &transport.TransportError{Op: "subscribe", Endpoint: ep, Err: err}
	}

	return transport.SubscriptionFunc(func() error {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil
		}
		return ch.EnableNotifications(nil)
	}), nil
}

// Close implements transport.Session.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.device.Disconnect()
}

// do runs a blocking stack call. If ctx ends first the link is dropped,
// which makes the pending operation fail instead of completing later.
func (s *session) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	}
}

// Compile-time interface checks.
var (
	_ transport.Connector = (*Connector)(nil)
	_ transport.Session   = (*session)(nil)
)
