// Package provider defines the CDN provider abstraction and the registry used to
// select one by name.
//
// A provider turns the absolute path of a file living in the local staging
// directory into the URL under which a CDN serves it. Backends live in their
// own sub-packages and register themselves from init(); importing
// github.com/radiofrance/imgtag/pkg/provider/prelude makes all of them available.
package provider

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
)

// Provider turns a local image into a remote link.
type Provider interface {
	// RemoteLink returns the URL of the image stored at localPath.
	// Implementations may upload the file as a side effect.
	RemoteLink(ctx context.Context, localPath string) (string, error)
}

// Factory builds a Provider from its configuration.
type Factory func(ctx context.Context, cfg Config) (Provider, error)

// Config is what a Factory receives.
type Config struct {
	// Options is the provider_config value, passed through untouched.
	Options map[string]any
	// ImagesDir is the absolute path of the local staging directory.
	ImagesDir string
	// Fs holds the staging directory. The OS filesystem is used when nil.
	Fs afero.Fs
}

// FS returns the filesystem images are read from.
func (c Config) FS() afero.Fs {
	if c.Fs == nil {
		return afero.NewOsFs()
	}

	return c.Fs
}

// Decode copies Options into out, matching keys against `mapstructure` struct tags.
// Values are weakly typed, so "true" or "3600" coming from environment variables are accepted.
func (c Config) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("can't create provider config decoder: %w", err)
	}

	if err := decoder.Decode(c.Options); err != nil {
		return fmt.Errorf("invalid provider config: %w", err)
	}

	return nil
}
