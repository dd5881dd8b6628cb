package provider

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/radiofrance/imgtag/pkg/logger"
)

// Source hands out the active provider.
type Source interface {
	Get(ctx context.Context) (Provider, error)
}

// Lazy builds the configured provider on first use and returns the same instance afterwards.
// Concurrent callers racing during warm-up never cause a second construction.
// A failed construction is not memoized: the next call tries again.
type Lazy struct {
	registry *Registry
	name     string
	cfg      Config

	instance atomic.Pointer[Provider]
	mu       sync.Mutex
}

func NewLazy(registry *Registry, name string, cfg Config) *Lazy {
	if registry == nil {
		registry = Default
	}

	return &Lazy{
		registry: registry,
		name:     name,
		cfg:      cfg,
	}
}

func (l *Lazy) Get(ctx context.Context) (Provider, error) {
	if p := l.instance.Load(); p != nil {
		return *p, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p := l.instance.Load(); p != nil {
		return *p, nil
	}

	factory, err := l.registry.Lookup(l.name)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Initializing %q provider", l.name)

	p, err := factory(ctx, l.cfg)
	if err != nil {
		return nil, fmt.Errorf("can't initialize %q provider: %w", l.name, err)
	}

	l.instance.Store(&p)

	return p, nil
}

type fixed struct {
	p Provider
}

// Fixed returns a Source always handing out p.
func Fixed(p Provider) Source {
	return fixed{p: p}
}

func (f fixed) Get(context.Context) (Provider, error) {
	return f.p, nil
}
