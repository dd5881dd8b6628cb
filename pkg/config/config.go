// Package config holds the configuration context shared by every link resolution.
//
// A Context is built once at startup and never changes afterwards, so it can be
// read from any number of goroutines without synchronization.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/radiofrance/imgtag/pkg/logger"
)

const (
	// DefaultRemoteImagesDir is the staging folder name used when none is configured.
	DefaultRemoteImagesDir = "remote_images"
	// DefaultProviderTimeout bounds each provider call.
	DefaultProviderTimeout = 60 * time.Second
	// SourceDir is the directory of the site root holding the sources, staging folder included.
	SourceDir = "source"
)

// ErrProviderRequired is returned by New when no provider name is configured.
var ErrProviderRequired = errors.New("a provider name is required")

// Options is the host-supplied configuration, usually hydrated from viper.
type Options struct {
	// Provider selects the CDN backend, e.g. "s3" or "imgix".
	Provider string `mapstructure:"provider"`
	// ProviderConfig is handed to the provider factory untouched.
	ProviderConfig map[string]any `mapstructure:"provider_config"`
	// RemoteImagesDir is the staging folder, relative to the "source" directory.
	// It must live outside the main asset directory of the site.
	RemoteImagesDir string `mapstructure:"remote_images_dir"`
	// RootPath is the site root. Defaults to the working directory.
	RootPath string `mapstructure:"root_path"`
	// ProviderTimeout bounds each provider call. Zero selects DefaultProviderTimeout,
	// a negative value disables the timeout.
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

// Context is the immutable configuration shared by the resolver and the provider registry.
type Context struct {
	provider        string
	providerConfig  map[string]any
	remoteImagesDir string
	rootPath        string
	providerTimeout time.Duration
}

// New validates opts, applies defaults, and makes sure the staging directory exists.
// The provider name is only checked for presence: an unknown provider is reported
// when the first link is resolved.
func New(fs afero.Fs, opts Options) (*Context, error) {
	if strings.TrimSpace(opts.Provider) == "" {
		return nil, ErrProviderRequired
	}

	remoteImagesDir := strings.Trim(filepath.ToSlash(opts.RemoteImagesDir), "/")
	if remoteImagesDir == "" {
		remoteImagesDir = DefaultRemoteImagesDir
	}

	rootPath := opts.RootPath
	if rootPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("can't get working directory: %w", err)
		}
		rootPath = wd
	}

	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("can't resolve root path %q: %w", opts.RootPath, err)
	}

	timeout := opts.ProviderTimeout
	switch {
	case timeout == 0:
		timeout = DefaultProviderTimeout
	case timeout < 0:
		timeout = 0
	}

	cfg := &Context{
		provider:        opts.Provider,
		providerConfig:  maps.Clone(opts.ProviderConfig),
		remoteImagesDir: remoteImagesDir,
		rootPath:        rootPath,
		providerTimeout: timeout,
	}

	if err := ensureDir(fs, cfg.ImagesPath()); err != nil {
		return nil, err
	}

	return cfg, nil
}

func ensureDir(fs afero.Fs, dir string) error {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return fmt.Errorf("can't access directory %q: %w", dir, err)
	}
	if exists {
		return nil
	}

	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("can't create remote images directory %q: %w", dir, err)
	}
	logger.Infof("Created remote images directory %q", dir)

	return nil
}

func (c *Context) Provider() string {
	return c.provider
}

// ProviderConfig returns a shallow copy of the provider configuration.
func (c *Context) ProviderConfig() map[string]any {
	return maps.Clone(c.providerConfig)
}

func (c *Context) RemoteImagesDir() string {
	return c.remoteImagesDir
}

func (c *Context) RootPath() string {
	return c.rootPath
}

// ImagesPath is the absolute path of the staging directory.
func (c *Context) ImagesPath() string {
	return filepath.Join(c.rootPath, SourceDir, filepath.FromSlash(c.remoteImagesDir))
}

// ProviderTimeout is zero when provider calls are not bounded.
func (c *Context) ProviderTimeout() time.Duration {
	return c.providerTimeout
}
