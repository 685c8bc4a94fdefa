package manifest

import (
	"context"
	"strings"
)

// DefaultURL is the release manifest of the MW4 costume controller firmware.
const DefaultURL = "http://mw4-firmware-release.s3-website-us-east-1.amazonaws.com/deployment.json"

// DefaultImageScheme is the scheme used to build image URLs from host and bin.
const DefaultImageScheme = "http"

// Manifest describes the latest firmware release.
type Manifest struct {
	// Version is the firmware version of the release
	Version uint32 `json:"version"`

	// Host is the server that serves the image, without scheme
	Host string `json:"host"`

	// Bin is the image path on Host, including the leading slash
	Bin string `json:"bin"`
}

// ImageURL returns the location of the image. A Host that already carries
// a scheme is used as is.
func (m *Manifest) ImageURL(scheme string) string {
	if strings.Contains(m.Host, "://") {
		return m.Host + m.Bin
	}
	if scheme == "" {
		scheme = DefaultImageScheme
	}
	return scheme + "://" + m.Host + m.Bin
}

// Source retrieves the manifest and the image it names.
// Both may fail with *NetworkError or *DecodeError.
type Source interface {
	FetchManifest(ctx context.Context) (*Manifest, error)
	FetchImage(ctx context.Context, m *Manifest) ([]byte, error)
}
