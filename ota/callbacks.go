package ota

import "time"

// Update phases reported in Progress.Phase.
const (
	PhaseChecking     = "checking"
	PhaseDownloading  = "downloading"
	PhaseTransferring = "transferring"
	PhaseFinalizing   = "finalizing"
	PhaseComplete     = "complete"
)

// Progress contains information about the update progress.
// Passed to ProgressCallback during an update.
type Progress struct {
	// Phase describes the current operation phase:
	//   "checking"     - Reading the device version and the manifest
	//   "downloading"  - Fetching the firmware image
	//   "transferring" - Writing image chunks to the device
	//   "finalizing"   - END sent, waiting for the device to confirm
	//   "complete"     - Device confirmed the new image
	Phase string

	// Percent is round(100 * Offset / Total), 0 to 100.
	// It never decreases within one session.
	Percent int

	// Offset is the number of image bytes confirmed by the device
	Offset int

	// Total is the image length in bytes
	Total int

	// Chunk is the number of chunks written so far
	Chunk int

	// ElapsedTime is the time elapsed since the session started
	ElapsedTime time.Duration
}

// ProgressCallback is called during an update to report progress.
// It runs on the goroutine driving the transfer; implementations should
// return quickly.
//
// Example:
//
//	up := ota.New(h, src,
//	    ota.WithProgressCallback(func(p ota.Progress) {
//	        fmt.Printf("[%s] %d%% (%d/%d bytes)\n", p.Phase, p.Percent, p.Offset, p.Total)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the updater.
// This allows integration with any logging framework.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	up := ota.New(h, src, ota.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
