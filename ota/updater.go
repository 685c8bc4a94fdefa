package ota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/moffa90/go-mw4ota/manifest"
	"github.com/moffa90/go-mw4ota/protocol"
	"github.com/moffa90/go-mw4ota/transport"
)

// Updater orchestrates firmware updates for a costume controller.
// It handles version negotiation, image retrieval and the OTA control
// protocol, with progress tracking.
//
// Updater is safe for concurrent use; concurrent operations on the same
// handle fail with transport.ErrBusy instead of interleaving.
type Updater struct {
	handle *transport.Handle
	source manifest.Source
	config Config
}

// Result describes one update attempt.
type Result struct {
	// SessionID identifies the attempt in logs
	SessionID string

	// DeviceVersion is the version the device reported before the update
	DeviceVersion uint32

	// ManifestVersion is the version the manifest offered
	ManifestVersion uint32

	// Skipped is true when the device already runs the manifest version or newer
	Skipped bool

	// State is the terminal session state (StateIdle when skipped)
	State State

	// BytesSent is the number of image bytes the device confirmed
	BytesSent int

	// Chunks is the number of data writes
	Chunks int

	// Elapsed is the duration of the attempt
	Elapsed time.Duration
}

// New creates a new Updater for the device behind h.
// src may be nil when only Transfer is used.
//
// Example:
//
//	h := transport.NewHandle(sess)
//	up := ota.New(h, manifest.NewClient(manifest.DefaultURL),
//	    ota.WithProgressCallback(progressFunc),
//	    ota.WithEndTimeout(time.Minute),
//	)
func New(h *transport.Handle, src manifest.Source, opts ...Option) *Updater {
	if h == nil {
		panic("handle cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Updater{
		handle: h,
		source: src,
		config: cfg,
	}
}

// Update performs the complete update sequence:
//  1. Read the device firmware version
//  2. Fetch the manifest and compare versions
//  3. Fetch the image when the device is stale
//  4. Run the OTA control protocol and transfer the image
//
// An up-to-date device yields a Result with Skipped set and a nil error.
// Failures before step 4 leave the device untouched. Failures during step 4
// are returned as *UpdateError; the Result is non-nil in that case.
//
// Example:
//
//	res, err := up.Update(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if res.Skipped {
//	    fmt.Println("already up to date")
//	}
func (u *Updater) Update(ctx context.Context) (*Result, error) {
	if u.source == nil {
		return nil, fmt.Errorf("no manifest source configured")
	}

	link, release, err := u.handle.Acquire("firmware update")
	if err != nil {
		return nil, err
	}
	defer release()

	res := &Result{SessionID: ulid.Make().String()}
	startTime := time.Now()

	u.reportProgress(Progress{Phase: PhaseChecking})

	raw, err := u.readVersion(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("read device version: %w", err)
	}

	m, err := u.fetchManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	res.ManifestVersion = m.Version

	deviceVersion, verr := protocol.ParseVersion(raw)
	res.DeviceVersion = deviceVersion
	u.logInfo("version check",
		"session", res.SessionID,
		"device_version", deviceVersion,
		"manifest_version", m.Version,
	)

	if !CheckVersion(raw, m.Version) {
		if verr != nil {
			u.logError("cannot update: malformed device version", "session", res.SessionID, "error", verr)
		} else {
			u.logInfo("device is already running latest version", "session", res.SessionID)
		}
		res.Skipped = true
		res.Elapsed = time.Since(startTime)
		return res, nil
	}

	u.reportProgress(Progress{Phase: PhaseDownloading})

	image, err := u.fetchImage(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	u.logInfo("beginning update",
		"session", res.SessionID,
		"image", m.Bin,
		"bytes", len(image),
	)

	err = u.transfer(ctx, link, image, res)
	res.Elapsed = time.Since(startTime)
	return res, err
}

// Transfer runs the OTA control protocol for image without any version
// check or fetch. The Result is non-nil whenever a session was started.
//
// Example:
//
//	image, _ := os.ReadFile("firmware.bin")
//	res, err := up.Transfer(ctx, image)
func (u *Updater) Transfer(ctx context.Context, image []byte) (*Result, error) {
	link, release, err := u.handle.Acquire("firmware transfer")
	if err != nil {
		return nil, err
	}
	defer release()

	res := &Result{SessionID: ulid.Make().String()}
	startTime := time.Now()

	if err := u.transfer(ctx, link, image, res); err != nil {
		if errors.Is(err, ErrInvalidChunkSize) {
			return nil, err
		}
		res.Elapsed = time.Since(startTime)
		return res, err
	}

	res.Elapsed = time.Since(startTime)
	return res, nil
}

// DeviceVersion reads the firmware version the device is running.
func (u *Updater) DeviceVersion(ctx context.Context) (uint32, error) {
	link, release, err := u.handle.Acquire("version read")
	if err != nil {
		return 0, err
	}
	defer release()

	raw, err := u.readVersion(ctx, link)
	if err != nil {
		return 0, err
	}
	return protocol.ParseVersion(raw)
}

// transfer validates the configuration, then runs one session to a terminal state.
func (u *Updater) transfer(ctx context.Context, link transport.Session, image []byte, res *Result) error {
	if u.config.ChunkSize < 1 || u.config.ChunkSize > protocol.MaxPayloadSize {
		return fmt.Errorf("%w: got %d", ErrInvalidChunkSize, u.config.ChunkSize)
	}

	s := newSession(u, res.SessionID, link, image)
	err := s.run(ctx)

	res.State = s.state
	res.BytesSent = s.xfer.offset
	res.Chunks = s.xfer.chunks

	if err != nil {
		return err
	}

	u.logInfo("update complete",
		"session", res.SessionID,
		"bytes", s.xfer.offset,
		"chunks", s.xfer.chunks,
		"elapsed", time.Since(s.start).String(),
	)
	return nil
}

// readVersion reads the raw firmware version value.
func (u *Updater) readVersion(ctx context.Context, link transport.Session) ([]byte, error) {
	rctx, cancel := context.WithTimeout(ctx, u.config.ReadTimeout)
	defer cancel()
	return link.ReadValue(rctx, protocol.EndpointVersion)
}

func (u *Updater) fetchManifest(ctx context.Context) (*manifest.Manifest, error) {
	fctx, cancel := context.WithTimeout(ctx, u.config.FetchTimeout)
	defer cancel()
	return u.source.FetchManifest(fctx)
}

func (u *Updater) fetchImage(ctx context.Context, m *manifest.Manifest) ([]byte, error) {
	fctx, cancel := context.WithTimeout(ctx, u.config.FetchTimeout)
	defer cancel()
	return u.source.FetchImage(fctx, m)
}

// reportProgress calls the progress callback if configured.
func (u *Updater) reportProgress(progress Progress) {
	if u.config.ProgressCallback != nil {
		u.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (u *Updater) logDebug(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (u *Updater) logInfo(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (u *Updater) logError(msg string, keysAndValues ...interface{}) {
	if u.config.Logger != nil {
		u.config.Logger.Error(msg, keysAndValues...)
	}
}
