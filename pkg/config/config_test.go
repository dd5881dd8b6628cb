package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiofrance/imgtag/pkg/config"
)

func TestNew(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.New(fs, config.Options{
		Provider:       "s3",
		ProviderConfig: map[string]any{"bucket": "assets"},
		RootPath:       "/site",
	})
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.Provider())
	assert.Equal(t, map[string]any{"bucket": "assets"}, cfg.ProviderConfig())
	assert.Equal(t, config.DefaultRemoteImagesDir, cfg.RemoteImagesDir())
	assert.Equal(t, "/site", cfg.RootPath())
	assert.Equal(t, filepath.Join("/site", "source", "remote_images"), cfg.ImagesPath())
	assert.Equal(t, config.DefaultProviderTimeout, cfg.ProviderTimeout())

	exists, err := afero.DirExists(fs, "/site/source/remote_images")
	require.NoError(t, err)
	assert.True(t, exists, "staging directory should be created")
}

func TestNewCustomOptions(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg, err := config.New(fs, config.Options{
		Provider:        "imgix",
		RemoteImagesDir: "/cdn/images/",
		RootPath:        "/site",
		ProviderTimeout: -1,
	})
	require.NoError(t, err)

	assert.Equal(t, "cdn/images", cfg.RemoteImagesDir())
	assert.Equal(t, filepath.Join("/site", "source", "cdn", "images"), cfg.ImagesPath())
	assert.Equal(t, time.Duration(0), cfg.ProviderTimeout())

	exists, err := afero.DirExists(fs, "/site/source/cdn/images")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewIsIdempotent(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site/source/remote_images", 0o750))
	require.NoError(t, afero.WriteFile(fs, "/site/source/remote_images/logo.png", []byte("png"), 0o644))

	opts := config.Options{Provider: "static", RootPath: "/site"}
	_, err := config.New(fs, opts)
	require.NoError(t, err)
	_, err = config.New(fs, opts)
	require.NoError(t, err)

	content, err := afero.ReadFile(fs, "/site/source/remote_images/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(content))
}

func TestNewRequiresProvider(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "   "} {
		_, err := config.New(afero.NewMemMapFs(), config.Options{Provider: name, RootPath: "/site"})
		require.ErrorIs(t, err, config.ErrProviderRequired)
	}
}

func TestNewAcceptsUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg, err := config.New(afero.NewMemMapFs(), config.Options{Provider: "doesnotexist", RootPath: "/site"})
	require.NoError(t, err)
	assert.Equal(t, "doesnotexist", cfg.Provider())
}

func TestNewReadOnlyFilesystem(t *testing.T) {
	t.Parallel()

	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := config.New(fs, config.Options{Provider: "s3", RootPath: "/site"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "can't create remote images directory")
}

func TestProviderConfigIsACopy(t *testing.T) {
	t.Parallel()

	options := map[string]any{"bucket": "assets"}
	cfg, err := config.New(afero.NewMemMapFs(), config.Options{
		Provider:       "s3",
		ProviderConfig: options,
		RootPath:       "/site",
	})
	require.NoError(t, err)

	options["bucket"] = "changed"
	returned := cfg.ProviderConfig()
	returned["bucket"] = "changed again"

	assert.Equal(t, "assets", cfg.ProviderConfig()["bucket"])
}
