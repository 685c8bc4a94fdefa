// Package manifest retrieves the firmware release manifest and image.
//
// # Manifest Format
//
// The release host serves a small JSON document naming the latest version
// and where its binary lives:
//
//	{"version": 4, "host": "releases.example.com", "bin": "/mw4/firmware-4.bin"}
//
// The image is fetched from scheme + "://" + host + bin as a raw byte stream.
//
// # Usage
//
// Fetch from the release host:
//
//	src := manifest.NewClient(manifest.DefaultURL)
//	m, err := src.FetchManifest(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	image, err := src.FetchImage(ctx, m)
//
// Parse a manifest from disk or any io.Reader:
//
//	m, err := manifest.Load("deployment.json")
//	m, err := manifest.Parse(strings.NewReader(doc))
//
// Serve a local image for bench flashing:
//
//	src := manifest.NewFileSource("build/firmware.bin", 5)
//
// Protect a release host with a circuit breaker:
//
//	src := manifest.NewBreaker(manifest.NewClient(url), manifest.BreakerConfig{}, logger)
//
// # Error Handling
//
//   - NetworkError: the request failed, returned a non-200 status or the
//     circuit is open
//   - DecodeError: the document is malformed or the image is too large
//
// Neither touches the device; callers may report them directly.
package manifest
