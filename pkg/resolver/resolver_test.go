package resolver_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiofrance/imgtag/pkg/config"
	"github.com/radiofrance/imgtag/pkg/mock"
	"github.com/radiofrance/imgtag/pkg/provider"
	"github.com/radiofrance/imgtag/pkg/resolver"
)

const siteRoot = "/site"

func setup(t *testing.T, opts config.Options, files ...string) (*config.Context, afero.Fs) {
	t.Helper()

	if opts.Provider == "" {
		opts.Provider = "stub"
	}
	opts.RootPath = siteRoot

	fs := afero.NewMemMapFs()
	cfg, err := config.New(fs, opts)
	require.NoError(t, err)

	for _, file := range files {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(cfg.ImagesPath(), file), []byte(file), 0o644))
	}

	return cfg, fs
}

func TestResolveLinkBuildMode(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{}, "logo.png", "blog/header.jpg")
	stub := mock.NewProvider("https://cdn.example/")
	res := resolver.New(cfg, provider.Fixed(stub), fs)

	tests := []struct {
		identifier string
		expected   string
		localPath  string
	}{
		{
			identifier: "logo.png",
			expected:   "https://cdn.example/logo.png",
			localPath:  "/site/source/remote_images/logo.png",
		},
		{
			identifier: "blog/header.jpg",
			expected:   "https://cdn.example/header.jpg",
			localPath:  "/site/source/remote_images/blog/header.jpg",
		},
	}

	for _, test := range tests {
		link, err := res.ResolveLink(context.Background(), resolver.ModeBuild, test.identifier)
		require.NoError(t, err)
		assert.Equal(t, test.expected, link)
		assert.Equal(t, filepath.FromSlash(test.localPath), res.LocalPath(test.identifier))
	}

	assert.Equal(t, []string{
		filepath.FromSlash("/site/source/remote_images/logo.png"),
		filepath.FromSlash("/site/source/remote_images/blog/header.jpg"),
	}, stub.Calls())
}

func TestResolveLinkBuildModeImageNotFound(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{}, "blog/header.jpg")
	require.NoError(t, afero.WriteFile(fs, filepath.FromSlash("/site/secrets.env"), []byte("TOKEN=1"), 0o600))
	require.NoError(t, afero.WriteFile(fs, filepath.FromSlash("/site/source/remote_images_old/logo.png"),
		[]byte("png"), 0o644))
	stub := mock.NewProvider("https://cdn.example/")
	res := resolver.New(cfg, provider.Fixed(stub), fs)

	tests := []struct {
		name       string
		identifier string
	}{
		{name: "missing file", identifier: "logo.png"},
		{name: "directory", identifier: "blog"},
		{name: "empty identifier", identifier: ""},
		{name: "outside the staging directory", identifier: "../../secrets.env"},
		{name: "staging directory itself", identifier: "../remote_images"},
		{name: "sibling of the staging directory", identifier: "../remote_images_old/logo.png"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			link, err := res.ResolveLink(context.Background(), resolver.ModeBuild, test.identifier)
			require.Error(t, err)
			assert.Empty(t, link)
			assert.ErrorIs(t, err, resolver.ErrImageNotFound)

			var notFound *resolver.ImageNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, test.identifier, notFound.Identifier)
			assert.Equal(t, res.LocalPath(test.identifier), notFound.Path)
		})
	}

	assert.Empty(t, stub.Calls(), "provider must not be called for missing images")
}

func TestResolveLinkPreviewMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       config.Options
		identifier string
		expected   string
	}{
		{
			name:       "existing file",
			identifier: "existing.png",
			expected:   "../remote_images/existing.png",
		},
		{
			name:       "missing file",
			identifier: "logo.png",
			expected:   "../remote_images/logo.png",
		},
		{
			name:       "nested",
			identifier: "blog/header.jpg",
			expected:   "../remote_images/blog/header.jpg",
		},
		{
			name:       "custom directory",
			opts:       config.Options{RemoteImagesDir: "cdn_images"},
			identifier: "logo.png",
			expected:   "../cdn_images/logo.png",
		},
		{
			name:       "unknown provider",
			opts:       config.Options{Provider: "doesnotexist"},
			identifier: "logo.png",
			expected:   "../remote_images/logo.png",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cfg, fs := setup(t, test.opts, "existing.png")
			stub := mock.NewProvider("https://cdn.example/")
			res := resolver.New(cfg, provider.Fixed(stub), fs)

			for _, mode := range []resolver.Mode{resolver.ModePreview, "development", "server"} {
				link, err := res.ResolveLink(context.Background(), mode, test.identifier)
				require.NoError(t, err)
				assert.Equal(t, test.expected, link)
			}
			assert.Empty(t, stub.Calls())
		})
	}
}

func TestResolveLinkUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{Provider: "doesnotexist"}, "logo.png")
	res := resolver.New(cfg, provider.NewLazy(provider.NewRegistry(), cfg.Provider(), provider.Config{}), fs)

	_, err := res.ResolveLink(context.Background(), resolver.ModeBuild, "logo.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestResolveLinkMissingImageBeforeUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{Provider: "doesnotexist"})
	res := resolver.New(cfg, nil, fs)

	_, err := res.ResolveLink(context.Background(), resolver.ModeBuild, "logo.png")
	require.ErrorIs(t, err, resolver.ErrImageNotFound)
}

func TestResolveLinkProviderErrorIsPassedThrough(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{}, "logo.png")
	providerErr := errors.New("quota exceeded")
	stub := mock.NewProvider("")
	stub.Error = providerErr
	res := resolver.New(cfg, provider.Fixed(stub), fs)

	_, err := res.ResolveLink(context.Background(), resolver.ModeBuild, "logo.png")
	assert.Same(t, providerErr, err)
}

func TestResolveLinkProviderTimeout(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{ProviderTimeout: 10 * time.Millisecond}, "logo.png")
	stub := mock.NewProvider("")
	stub.LinkFunc = func(ctx context.Context, _ string) (string, error) {
		deadline, ok := ctx.Deadline()
		assert.True(t, ok, "provider call should carry a deadline")
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, time.Second)

		<-ctx.Done()
		return "", ctx.Err()
	}
	res := resolver.New(cfg, provider.Fixed(stub), fs)

	_, err := res.ResolveLink(context.Background(), resolver.ModeBuild, "logo.png")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveLinkSingleProviderInstance(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{}, "a.png", "b.png", "c.png")

	var built atomic.Int32
	registry := provider.NewRegistry()
	registry.Register("stub", func(_ context.Context, _ provider.Config) (provider.Provider, error) {
		built.Add(1)
		return mock.NewProvider("https://cdn.example/"), nil
	})
	res := resolver.New(cfg, provider.NewLazy(registry, cfg.Provider(), provider.Config{}), fs)

	wg := sync.WaitGroup{}
	for range 20 {
		for _, identifier := range []string{"a.png", "b.png", "c.png"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				link, err := res.ResolveLink(context.Background(), resolver.ModeBuild, identifier)
				assert.NoError(t, err)
				assert.Equal(t, "https://cdn.example/"+identifier, link)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, int32(1), built.Load())
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected resolver.Mode
		wantErr  bool
	}{
		{input: "build", expected: resolver.ModeBuild},
		{input: "BUILD", expected: resolver.ModeBuild},
		{input: "production", expected: resolver.ModeBuild},
		{input: "preview", expected: resolver.ModePreview},
		{input: "development", expected: resolver.ModePreview},
		{input: "server", expected: resolver.ModePreview},
		{input: "", expected: resolver.ModePreview},
		{input: "staging", wantErr: true},
	}

	for _, test := range tests {
		mode, err := resolver.ParseMode(test.input)
		if test.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, test.expected, mode)
	}
}

func TestResolverFs(t *testing.T) {
	t.Parallel()

	cfg, fs := setup(t, config.Options{})
	assert.Same(t, fs, resolver.New(cfg, provider.Fixed(mock.NewProvider("")), fs).Fs())
	assert.IsType(t, &afero.OsFs{}, resolver.New(cfg, provider.Fixed(mock.NewProvider("")), nil).Fs())
}
