package mock

import (
	"context"
	"path/filepath"
	"sync"
)

// Provider records every RemoteLink call. By default it maps a local path to
// BaseURL followed by the file base name.
type Provider struct {
	BaseURL string
	Error   error
	// LinkFunc overrides the default mapping when set.
	LinkFunc func(ctx context.Context, localPath string) (string, error)

	lock  sync.Mutex
	calls []string
}

func NewProvider(baseURL string) *Provider {
	return &Provider{BaseURL: baseURL}
}

func (p *Provider) RemoteLink(ctx context.Context, localPath string) (string, error) {
	p.lock.Lock()
	p.calls = append(p.calls, localPath)
	p.lock.Unlock()

	if p.LinkFunc != nil {
		return p.LinkFunc(ctx, localPath)
	}

	if p.Error != nil {
		return "", p.Error
	}

	return p.BaseURL + filepath.Base(localPath), nil
}

// Calls returns the local paths the provider was called with, in call order.
func (p *Provider) Calls() []string {
	p.lock.Lock()
	defer p.lock.Unlock()

	return append([]string(nil), p.calls...)
}
