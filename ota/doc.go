// Package ota provides a high-level API for updating costume controller firmware
// over a Bluetooth LE link.
//
// # Overview
//
// This package orchestrates the complete update sequence:
//   - Reading the firmware version the device runs
//   - Fetching the release manifest and deciding whether to update
//   - Fetching the firmware image
//   - Running the OTA control protocol (START, ACK, NOP, data, END)
//   - Writing the image in confirmed chunks with progress tracking
//
// # Basic Usage
//
// The simplest way to update a device:
//
//	// User provides the link (transport.Session)
//	sess, err := ble.New(ble.Config{}).Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	up := ota.New(transport.NewHandle(sess), manifest.NewClient(manifest.DefaultURL))
//	res, err := up.Update(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
// Track transfer progress with a callback:
//
//	up := ota.New(h, src,
//	    ota.WithProgressCallback(func(p ota.Progress) {
//	        fmt.Printf("[%s] %d%%\n", p.Phase, p.Percent)
//	    }),
//	)
//
// Percent is non-decreasing within a session and ends at exactly 100 when
// every byte was confirmed.
//
// # Configuration Options
//
//	up := ota.New(h, src,
//	    ota.WithLogger(myLogger),
//	    ota.WithChunkSize(244),
//	    ota.WithWriteTimeout(5*time.Second),
//	    ota.WithAckTimeout(10*time.Second),
//	    ota.WithEndTimeout(time.Minute),
//	    ota.WithWriteInterval(5*time.Millisecond),
//	    ota.WithChunkAck(true),
//	)
//
// # Control Protocol
//
// A session moves through
//
//	Idle -> AwaitingStartAck -> Transferring -> AwaitingEndAck -> Completed
//
// and may reach Failed from any non-terminal state. Any code other than ACK
// in answer to START fails the session before a single chunk is written. After
// END the device must answer ACK or NOP within the end timeout; silence fails
// the session with reason "no end confirmation".
//
// # Context Support
//
// Every blocking point has its own bound, and the whole operation honors ctx:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
//	defer cancel()
//
//	res, err := up.Update(ctx)
//
// Cancelling ctx stops further chunk writes, unsubscribes from control
// notifications and fails the session with reason "cancelled".
//
// # Error Handling
//
// The package provides structured error types:
//   - UpdateError: the session failed; carries the reason and last offset
//   - transport.TransportError: a read, write or subscribe failed
//   - protocol.ProtocolError: the device answered wrongly or not at all
//   - manifest.NetworkError, manifest.DecodeError: the fetch failed before
//     the device was touched
//
// Partial resume is not supported. Retry by calling Update again; the
// transfer restarts from offset zero.
package ota
