package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    *Manifest
		wantErr string
	}{
		{
			name: "valid manifest",
			doc:  `{"version": 4, "host": "mw4-firmware-release.s3-website-us-east-1.amazonaws.com", "bin": "/firmware-4.bin"}`,
			want: &Manifest{Version: 4, Host: "mw4-firmware-release.s3-website-us-east-1.amazonaws.com", Bin: "/firmware-4.bin"},
		},
		{
			name: "unknown fields ignored",
			doc:  `{"version": 0, "host": "h", "bin": "/b", "notes": "first release"}`,
			want: &Manifest{Version: 0, Host: "h", Bin: "/b"},
		},
		{
			name:    "negative version",
			doc:     `{"version": -1, "host": "h", "bin": "/b"}`,
			wantErr: "decode manifest",
		},
		{
			name:    "fractional version",
			doc:     `{"version": 1.5, "host": "h", "bin": "/b"}`,
			wantErr: "decode manifest",
		},
		{
			name:    "version as string",
			doc:     `{"version": "4", "host": "h", "bin": "/b"}`,
			wantErr: "decode manifest",
		},
		{
			name:    "missing version",
			doc:     `{"host": "h", "bin": "/b"}`,
			wantErr: "missing version",
		},
		{
			name:    "missing host",
			doc:     `{"version": 2, "bin": "/b"}`,
			wantErr: "missing host",
		},
		{
			name:    "missing bin",
			doc:     `{"version": 2, "host": "h"}`,
			wantErr: "missing bin",
		},
		{
			name:    "not json",
			doc:     `<html>404</html>`,
			wantErr: "decode manifest",
		},
		{
			name:    "empty document",
			doc:     ``,
			wantErr: "decode manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(strings.NewReader(tt.doc))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, IsDecodeError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestParseTooLarge(t *testing.T) {
	doc := `{"version": 1, "host": "h", "bin": "/b", "pad": "` + strings.Repeat("x", MaxManifestSize) + `"}`
	_, err := Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployment.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 7, "host": "h", "bin": "/fw.bin"}`), 0600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), m.Version)

	_, err = Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestImageURL(t *testing.T) {
	m := &Manifest{Host: "releases.example.com", Bin: "/mw4/fw.bin"}
	assert.Equal(t, "http://releases.example.com/mw4/fw.bin", m.ImageURL(""))
	assert.Equal(t, "https://releases.example.com/mw4/fw.bin", m.ImageURL("https"))

	withScheme := &Manifest{Host: "http://127.0.0.1:8080", Bin: "/fw.bin"}
	assert.Equal(t, "http://127.0.0.1:8080/fw.bin", withScheme.ImageURL("https"))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "fetch http://h/m.json: status 404", (&NetworkError{URL: "http://h/m.json", StatusCode: 404}).Error())
	assert.Equal(t, "decode image: too big", (&DecodeError{Source: "image", Err: assertErr("too big")}).Error())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
