package manifest

import (
	"context"
	"fmt"
	"os"
)

// FileSource serves a local image under an explicit version, for bench
// flashing without the release host.
type FileSource struct {
	path    string
	version uint32
}

// NewFileSource creates a Source for the image at path.
func NewFileSource(path string, version uint32) *FileSource {
	return &FileSource{path: path, version: version}
}

// Path returns the image location.
func (s *FileSource) Path() string {
	return s.path
}

// FetchManifest implements Source.
func (s *FileSource) FetchManifest(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); err != nil {
		return nil, &NetworkError{URL: s.path, Err: err}
	}
	return &Manifest{Version: s.version, Host: "localhost", Bin: s.path}, nil
}

// FetchImage implements Source. The manifest must be one this source returned.
func (s *FileSource) FetchImage(ctx context.Context, m *Manifest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m == nil || m.Bin != s.path {
		return nil, fmt.Errorf("manifest does not belong to %s", s.path)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &NetworkError{URL: s.path, Err: err}
	}
	return data, nil
}
