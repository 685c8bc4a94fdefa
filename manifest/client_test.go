package manifest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// releaseServer serves a manifest at /deployment.json and an image at /fw.bin.
func releaseServer(t *testing.T, image []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/deployment.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version": 4, "host": "` + srv.Listener.Addr().String() + `", "bin": "/fw.bin"}`))
	})
	mux.HandleFunc("/fw.bin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(image)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientFetch(t *testing.T) {
	image := bytes.Repeat([]byte{0xAB}, 1000)
	srv := releaseServer(t, image)

	c := NewClient(srv.URL + "/deployment.json")
	m, err := c.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(4), m.Version)
	assert.Equal(t, "/fw.bin", m.Bin)

	got, err := c.FetchImage(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, image, got)
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchManifest(context.Background())
	require.Error(t, err)

	var ne *NetworkError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusForbidden, ne.StatusCode)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).FetchManifest(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestClientImageTooLarge(t *testing.T) {
	srv := releaseServer(t, make([]byte, 2048))

	c := NewClient(srv.URL+"/deployment.json", WithMaxImageSize(1024))
	m, err := c.FetchManifest(context.Background())
	require.NoError(t, err)

	_, err = c.FetchImage(context.Background(), m)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestClientHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).FetchManifest(ctx)
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "firmware.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0600))

	src := NewFileSource(path, 9)
	m, err := src.FetchManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(9), m.Version)

	data, err := src.FetchImage(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = NewFileSource(filepath.Join(dir, "missing.bin"), 1).FetchManifest(context.Background())
	assert.True(t, IsNetworkError(err))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	b := NewBreaker(NewClient(srv.URL), BreakerConfig{MaxFailures: 2, Timeout: time.Hour}, nil)

	for i := 0; i < 2; i++ {
		_, err := b.FetchManifest(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())

	_, err := b.FetchManifest(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err), "open circuit is reported as a network error")
	assert.Equal(t, int32(2), hits.Load(), "open circuit must not reach the host")
	assert.Equal(t, "open", b.State().String())
}

func TestBreakerIgnoresDecodeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	b := NewBreaker(NewClient(srv.URL), BreakerConfig{MaxFailures: 1}, nil)
	for i := 0; i < 3; i++ {
		_, err := b.FetchManifest(context.Background())
		require.Error(t, err)
		assert.True(t, IsDecodeError(err))
	}
	assert.Equal(t, "closed", b.State().String())
}
