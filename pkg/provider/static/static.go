// Package static links images to a base URL, for hosts publishing the staging
// directory themselves (rsync, CI artifact, CDN pull zone...).
package static

import (
	"context"
	"errors"

	"github.com/radiofrance/imgtag/pkg/provider"
)

const Name = "static"

func init() {
	provider.Register(Name, New)
}

// Options is the provider_config of the static provider.
type Options struct {
	BaseURL     string `mapstructure:"base_url"`
	Prefix      string `mapstructure:"prefix"`
	Fingerprint bool   `mapstructure:"fingerprint"`
}

type Provider struct {
	cfg  provider.Config
	opts Options
}

// New is the provider.Factory of the static provider.
func New(_ context.Context, cfg provider.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Decode(&opts); err != nil {
		return nil, err
	}

	if opts.BaseURL == "" {
		return nil, errors.New("base_url is required for the static provider")
	}

	return &Provider{cfg: cfg, opts: opts}, nil
}

func (p *Provider) RemoteLink(_ context.Context, localPath string) (string, error) {
	key, err := provider.ObjectKey(p.cfg, localPath, p.opts.Prefix, p.opts.Fingerprint)
	if err != nil {
		return "", err
	}

	return provider.JoinURL(p.opts.BaseURL, key), nil
}
