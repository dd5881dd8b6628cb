// Package resolver turns image identifiers used in templates into links.
//
// In build mode the identifier must match a file of the staging directory, and the
// link comes from the configured CDN provider. In any other mode the link is a
// relative path to the staging directory, served as is by the dev server.
package resolver

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/radiofrance/imgtag/pkg/config"
	"github.com/radiofrance/imgtag/pkg/logger"
	"github.com/radiofrance/imgtag/pkg/provider"
)

// Resolver is safe for concurrent use.
type Resolver struct {
	cfg       *config.Context
	providers provider.Source
	fs        afero.Fs
}

// New returns a Resolver. When source is nil, the provider named in cfg is looked up in
// provider.Default and built on first use.
func New(cfg *config.Context, source provider.Source, fs afero.Fs) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if source == nil {
		source = provider.NewLazy(provider.Default, cfg.Provider(), provider.Config{
			Options:   cfg.ProviderConfig(),
			ImagesDir: cfg.ImagesPath(),
			Fs:        fs,
		})
	}

	return &Resolver{
		cfg:       cfg,
		providers: source,
		fs:        fs,
	}
}

// Config returns the configuration context the resolver was built with.
func (r *Resolver) Config() *config.Context {
	return r.cfg
}

// Fs returns the filesystem holding the staging directory.
func (r *Resolver) Fs() afero.Fs {
	return r.fs
}

// ResolveLink returns the link to use for identifier in the given mode.
//
// Build mode fails with an *ImageNotFoundError before any provider call when the image
// is missing locally or the identifier points outside the staging directory. Errors returned by the provider are passed through unchanged.
func (r *Resolver) ResolveLink(ctx context.Context, mode Mode, identifier string) (string, error) {
	if !mode.IsBuild() {
		return "../" + r.cfg.RemoteImagesDir() + "/" + identifier, nil
	}

	localPath := r.LocalPath(identifier)
	if !r.inImagesPath(localPath) {
		logger.Debugf("Identifier %q resolves outside of %s", identifier, r.cfg.ImagesPath())
		return "", &ImageNotFoundError{Identifier: identifier, Path: localPath}
	}

	info, err := r.fs.Stat(localPath)
	if err != nil || !info.Mode().IsRegular() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Debugf("Can't stat %q: %v", localPath, err)
		}
		return "", &ImageNotFoundError{Identifier: identifier, Path: localPath}
	}

	p, err := r.providers.Get(ctx)
	if err != nil {
		return "", err
	}

	if timeout := r.cfg.ProviderTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	link, err := p.RemoteLink(ctx, localPath)
	if err != nil {
		return "", err
	}

	logger.Debugf("Resolved %q to %s", identifier, link)

	return link, nil
}

// LocalPath is the absolute path where the image named identifier is expected in build mode.
func (r *Resolver) LocalPath(identifier string) string {
	return filepath.Join(r.cfg.ImagesPath(), filepath.FromSlash(identifier))
}

func (r *Resolver) inImagesPath(localPath string) bool {
	rel, err := filepath.Rel(r.cfg.ImagesPath(), localPath)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
