// Package cloudinary uploads images to a Cloudinary media library.
package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/radiofrance/imgtag/pkg/logger"
	"github.com/radiofrance/imgtag/pkg/provider"
)

const Name = "cloudinary"

// ErrPublicIDConflict is returned when two staging files only differ by their extension.
var ErrPublicIDConflict = errors.New("cloudinary public ID already used by another image")

func init() {
	provider.Register(Name, New)
}

// Options is the provider_config of the cloudinary provider.
type Options struct {
	// URL is the CLOUDINARY_URL form, cloudinary://<api_key>:<api_secret>@<cloud_name>.
	URL       string `mapstructure:"url"`
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	// Folder is prepended to every public ID.
	Folder      string `mapstructure:"folder"`
	Fingerprint bool   `mapstructure:"fingerprint"`
}

// UploadFunc uploads the file at localPath under publicID and returns its secure URL.
type UploadFunc func(ctx context.Context, localPath, publicID string) (string, error)

// Provider uploads each image once per process and returns its secure URL.
//
// Cloudinary public IDs carry no extension, so "logo.png" and "logo.jpg" would
// overwrite each other: the second image claiming a public ID is rejected.
type Provider struct {
	upload UploadFunc
	cfg    provider.Config
	opts   Options

	lock sync.Mutex
	// links maps object keys to secure URLs.
	links map[string]string
	// owners maps public IDs to the object key that claimed them.
	owners map[string]string
}

// New is the provider.Factory of the cloudinary provider.
func New(_ context.Context, cfg provider.Config) (provider.Provider, error) {
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}

	var client *cld.Cloudinary
	if opts.URL != "" {
		client, err = cld.NewFromURL(opts.URL)
	} else {
		client, err = cld.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}

	return NewWithUploader(sdkUploader(client, cfg), cfg)
}

// NewWithUploader builds a provider delegating uploads to upload.
func NewWithUploader(upload UploadFunc, cfg provider.Config) (*Provider, error) {
	opts, err := parseOptions(cfg)
	if err != nil {
		return nil, err
	}

	return &Provider{
		upload: upload,
		cfg:    cfg,
		opts:   opts,
		links:  make(map[string]string),
		owners: make(map[string]string),
	}, nil
}

func parseOptions(cfg provider.Config) (Options, error) {
	var opts Options
	if err := cfg.Decode(&opts); err != nil {
		return opts, err
	}

	if opts.URL == "" && (opts.CloudName == "" || opts.APIKey == "" || opts.APISecret == "") {
		return opts, errors.New("cloudinary requires either url or cloud_name, api_key and api_secret")
	}

	return opts, nil
}

func (p *Provider) RemoteLink(ctx context.Context, localPath string) (string, error) {
	key, err := provider.ObjectKey(p.cfg, localPath, p.opts.Folder, p.opts.Fingerprint)
	if err != nil {
		return "", err
	}
	publicID := strings.TrimSuffix(key, path.Ext(key))

	p.lock.Lock()
	if link, ok := p.links[key]; ok {
		p.lock.Unlock()
		return link, nil
	}
	if owner, ok := p.owners[publicID]; ok && owner != key {
		p.lock.Unlock()
		return "", fmt.Errorf("%w: %s and %s both map to %q", ErrPublicIDConflict, owner, key, publicID)
	}
	p.owners[publicID] = key
	p.lock.Unlock()

	link, err := p.upload(ctx, localPath, publicID)
	if err != nil {
		p.lock.Lock()
		if _, uploaded := p.links[key]; !uploaded {
			delete(p.owners, publicID)
		}
		p.lock.Unlock()
		return "", fmt.Errorf("failed to upload %s to cloudinary: %w", publicID, err)
	}
	logger.Infof("Uploaded %s to cloudinary as %s", path.Base(key), publicID)

	p.lock.Lock()
	p.links[key] = link
	p.lock.Unlock()

	return link, nil
}

func sdkUploader(client *cld.Cloudinary, cfg provider.Config) UploadFunc {
	return func(ctx context.Context, localPath, publicID string) (string, error) {
		file, err := cfg.FS().Open(localPath)
		if err != nil {
			return "", fmt.Errorf("can't open file %s: %w", localPath, err)
		}
		defer func() {
			_ = file.Close()
		}()

		resp, err := client.Upload.Upload(ctx, file, uploader.UploadParams{
			PublicID: publicID,
		})
		if err != nil {
			return "", err
		}
		if resp.Error.Message != "" {
			return "", errors.New(resp.Error.Message)
		}

		return resp.SecureURL, nil
	}
}
