package manifest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultMaxImageSize bounds a downloaded image.
const DefaultMaxImageSize = 16 << 20

// Client fetches the manifest and image over HTTP.
type Client struct {
	url          string
	scheme       string
	maxImageSize int64
	http         *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithImageScheme sets the scheme used to build the image URL (default "http").
func WithImageScheme(scheme string) ClientOption {
	return func(c *Client) {
		c.scheme = scheme
	}
}

// WithMaxImageSize sets the largest accepted image in bytes.
func WithMaxImageSize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxImageSize = n
		}
	}
}

// NewClient creates a Client for the manifest at url.
//
// Example:
//
//	src := manifest.NewClient(manifest.DefaultURL, manifest.WithImageScheme("https"))
//	m, err := src.FetchManifest(ctx)
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:          url,
		scheme:       DefaultImageScheme,
		maxImageSize: DefaultMaxImageSize,
		http:         newHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newHTTPClient returns a client whose dial and header waits are bounded;
// the overall deadline comes from the request context.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			MaxIdleConns:          4,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// URL returns the manifest location.
func (c *Client) URL() string {
	return c.url
}

// FetchManifest implements Source.
func (c *Client) FetchManifest(ctx context.Context) (*Manifest, error) {
	body, err := c.get(ctx, c.url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	m, err := Parse(body)
	if err != nil {
		if ne, ok := err.(*NetworkError); ok {
			ne.URL = c.url
		}
		return nil, err
	}
	return m, nil
}

// FetchImage implements Source.
func (c *Client) FetchImage(ctx context.Context, m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest cannot be nil")
	}
	url := m.ImageURL(c.scheme)

	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(io.LimitReader(body, c.maxImageSize+1))
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("read image: %w", err)}
	}
	if int64(len(data)) > c.maxImageSize {
		return nil, &DecodeError{Source: "image", Err: fmt.Errorf("image exceeds %d bytes", c.maxImageSize)}
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}
