// Package publish resolves every image of the staging directory in build mode, so that
// the provider uploads them ahead of the site build.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"

	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/radiofrance/imgtag/pkg/logger"
	"github.com/radiofrance/imgtag/pkg/ratelimit"
	"github.com/radiofrance/imgtag/pkg/resolver"
	"github.com/radiofrance/imgtag/pkg/strutil"
)

// IgnoreFile holds .dockerignore-like patterns, relative to the staging directory.
const IgnoreFile = ".imgtagignore"

const DefaultConcurrency = 4

type Options struct {
	Resolver *resolver.Resolver
	// Fs is the filesystem holding the staging directory, the resolver's one when nil.
	Fs afero.Fs
	// Exclude patterns are added to the ones read from IgnoreFile.
	Exclude     []string
	Concurrency int
	// RateLimiter overrides the limiter built from Concurrency.
	RateLimiter ratelimit.RateLimiter
}

// Run resolves every image found under the staging directory. The returned error is
// only about listing images; per image failures are reported in Report.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Resolver == nil {
		return nil, errors.New("publish requires a resolver")
	}
	if opts.Fs == nil {
		opts.Fs = opts.Resolver.Fs()
	}
	limiter := opts.RateLimiter
	if limiter == nil {
		concurrency := opts.Concurrency
		if concurrency <= 0 {
			concurrency = DefaultConcurrency
		}
		limiter = ratelimit.NewChannelRateLimiter(concurrency)
	}

	root := opts.Resolver.Config().ImagesPath()
	identifiers, err := listImages(opts.Fs, root, opts.Exclude)
	if err != nil {
		return nil, err
	}
	logger.Infof("Publishing %d images", len(identifiers))

	report := &Report{}
	var lock sync.Mutex

	errG := new(errgroup.Group)
	for _, identifier := range identifiers {
		errG.Go(func() error {
			if err := limiter.Acquire(ctx); err != nil {
				return err
			}
			defer limiter.Release()

			result := Result{Identifier: identifier}
			result.Width, result.Height = imageSize(opts.Fs, filepath.Join(root, filepath.FromSlash(identifier)))
			result.URL, result.Error = opts.Resolver.ResolveLink(ctx, resolver.ModeBuild, identifier)
			if result.Error != nil {
				logger.Errorf("Failed to publish %s: %v", identifier, result.Error)
			} else {
				logger.Debugf("Published %s", identifier)
			}

			lock.Lock()
			report.Results = append(report.Results, result)
			lock.Unlock()

			return nil
		})
	}

	if err := errG.Wait(); err != nil {
		return nil, fmt.Errorf("publish interrupted: %w", err)
	}

	slices.SortFunc(report.Results, func(a, b Result) int {
		switch {
		case a.Identifier < b.Identifier:
			return -1
		case a.Identifier > b.Identifier:
			return 1
		default:
			return 0
		}
	})

	return report, nil
}

// listImages returns the slash-separated identifiers of the regular files under root,
// minus the ignored ones.
func listImages(fsys afero.Fs, root string, exclude []string) ([]string, error) {
	patterns, err := readIgnoreFile(fsys, filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil, err
	}
	patterns = strutil.DedupeStrSlice(append(patterns, exclude...))

	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore pattern: %w", err)
	}

	var identifiers []string
	err = afero.Walk(fsys, root, func(filePath string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, filePath)
		if err != nil {
			return err
		}
		identifier := filepath.ToSlash(rel)
		if identifier == IgnoreFile {
			return nil
		}

		ignored, err := matcher.MatchesOrParentMatches(identifier)
		if err != nil {
			return err
		}
		if ignored {
			logger.Debugf("Skipping ignored image %s", identifier)
			return nil
		}

		identifiers = append(identifiers, identifier)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("can't list images in %s: %w", root, err)
	}

	return identifiers, nil
}

func readIgnoreFile(fsys afero.Fs, filePath string) ([]string, error) {
	file, err := fsys.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("can't open %s: %w", filePath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	patterns, err := ignorefile.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", filePath, err)
	}

	return patterns, nil
}
