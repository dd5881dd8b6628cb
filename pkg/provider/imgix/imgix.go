// Package imgix builds imgix URLs for images whose origin bucket is synced out of band.
package imgix

import (
	"context"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/radiofrance/imgtag/pkg/provider"
)

const Name = "imgix"

func init() {
	provider.Register(Name, New)
}

// Options is the provider_config of the imgix provider.
type Options struct {
	// Domain is the imgix source domain, e.g. "example.imgix.net".
	Domain string `mapstructure:"domain"`
	Prefix string `mapstructure:"prefix"`
	// SecureToken signs every URL when set.
	SecureToken string `mapstructure:"secure_token"`
	// Params are default rendering parameters added to every URL, e.g. {"auto": "format"}.
	Params   map[string]string `mapstructure:"params"`
	Insecure bool              `mapstructure:"insecure"`
}

type Provider struct {
	cfg  provider.Config
	opts Options
}

// New is the provider.Factory of the imgix provider.
func New(_ context.Context, cfg provider.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Decode(&opts); err != nil {
		return nil, err
	}

	opts.Domain = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(opts.Domain, "https://"), "http://"), "/")
	if opts.Domain == "" {
		return nil, errors.New("imgix domain is required")
	}

	return &Provider{cfg: cfg, opts: opts}, nil
}

func (p *Provider) RemoteLink(_ context.Context, localPath string) (string, error) {
	key, err := provider.ObjectKey(p.cfg, localPath, p.opts.Prefix, false)
	if err != nil {
		return "", err
	}

	scheme := "https"
	if p.opts.Insecure {
		scheme = "http"
	}

	escapedPath := provider.JoinURL("", key)
	query := p.query()

	if p.opts.SecureToken != "" {
		toSign := p.opts.SecureToken + escapedPath
		if query != "" {
			toSign += "?" + query
		}
		sum := md5.Sum([]byte(toSign)) //nolint:gosec
		signature := "s=" + hex.EncodeToString(sum[:])
		if query == "" {
			query = signature
		} else {
			query += "&" + signature
		}
	}

	link := scheme + "://" + p.opts.Domain + escapedPath
	if query != "" {
		link += "?" + query
	}

	return link, nil
}

func (p *Provider) query() string {
	values := url.Values{}
	for key, value := range p.opts.Params {
		values.Set(key, value)
	}

	return values.Encode()
}
