package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MaxManifestSize bounds the manifest document.
const MaxManifestSize = 64 << 10

// Load parses a manifest file from the given path.
//
// Example:
//
//	m, err := manifest.Load("deployment.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Version: %d\n", m.Version)
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &NetworkError{URL: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse decodes a manifest document from any io.Reader.
//
// Document format:
//
//	{"version": 4, "host": "releases.example.com", "bin": "/mw4/firmware-4.bin"}
//
// Unknown fields are ignored. A negative or fractional version, a missing
// host or a missing bin is a *DecodeError.
func Parse(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxManifestSize+1))
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("read manifest: %w", err)}
	}
	if len(data) > MaxManifestSize {
		return nil, &DecodeError{Source: "manifest", Err: fmt.Errorf("document exceeds %d bytes", MaxManifestSize)}
	}

	var raw struct {
		Version *uint32 `json:"version"`
		Host    string  `json:"host"`
		Bin     string  `json:"bin"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, &DecodeError{Source: "manifest", Err: err}
	}

	if raw.Version == nil {
		return nil, &DecodeError{Source: "manifest", Err: fmt.Errorf("missing version")}
	}
	if raw.Host == "" {
		return nil, &DecodeError{Source: "manifest", Err: fmt.Errorf("missing host")}
	}
	if raw.Bin == "" {
		return nil, &DecodeError{Source: "manifest", Err: fmt.Errorf("missing bin")}
	}

	return &Manifest{
		Version: *raw.Version,
		Host:    raw.Host,
		Bin:     raw.Bin,
	}, nil
}
