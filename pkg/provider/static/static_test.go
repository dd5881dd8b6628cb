package static_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiofrance/imgtag/pkg/provider"
	"github.com/radiofrance/imgtag/pkg/provider/static"
)

func TestRemoteLink(t *testing.T) {
	t.Parallel()

	imagesDir := t.TempDir()
	localPath := filepath.Join(imagesDir, "logo.png")
	require.NoError(t, os.WriteFile(localPath, []byte("png"), 0o644))

	p, err := static.New(context.Background(), provider.Config{
		Options:   map[string]any{"base_url": "https://cdn.example/", "prefix": "img"},
		ImagesDir: imagesDir,
	})
	require.NoError(t, err)

	link, err := p.RemoteLink(context.Background(), localPath)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/img/logo.png", link)

	fingerprinted, err := static.New(context.Background(), provider.Config{
		Options:   map[string]any{"base_url": "https://cdn.example", "fingerprint": true},
		ImagesDir: imagesDir,
	})
	require.NoError(t, err)

	link, err = fingerprinted.RemoteLink(context.Background(), localPath)
	require.NoError(t, err)
	assert.Regexp(t, `^https://cdn\.example/logo-[0-9a-f]{12}\.png$`, link)
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := static.New(context.Background(), provider.Config{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "base_url is required")
}
