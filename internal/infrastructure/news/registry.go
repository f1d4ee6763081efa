// Package news adapts news-search providers to ports.NewsSource.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// Registry keeps a mapping from provider names to their implementations.
type Registry struct {
	sources map[string]ports.NewsSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.NewsSource{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source ports.NewsSource) {
	if r.sources == nil {
		r.sources = map[string]ports.NewsSource{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.NewsSource, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("news source %s is not registered", name)
}

// Chain returns a source that tries the named providers in order.
// Unregistered names are skipped; nil is returned when none is registered.
func (r *Registry) Chain(logger *slog.Logger, names ...string) ports.NewsSource {
	var chain fallbackSource
	seen := map[string]struct{}{}
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if source, err := r.Resolve(name); err == nil {
			chain.sources = append(chain.sources, source)
		}
	}
	switch len(chain.sources) {
	case 0:
		return nil
	case 1:
		return chain.sources[0]
	}
	if logger == nil {
		logger = slog.Default()
	}
	chain.logger = logger.With("component", "news")
	return &chain
}

type fallbackSource struct {
	sources []ports.NewsSource
	logger  *slog.Logger
}

func (f *fallbackSource) Name() string {
	return f.sources[0].Name()
}

func (f *fallbackSource) Search(ctx context.Context, q ports.NewsQuery) ([]domain.NewsItem, error) {
	var errs []error
	for _, source := range f.sources {
		items, err := source.Search(ctx, q)
		if err == nil {
			return items, nil
		}
		f.logger.Warn("news source failed", "source", source.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
	}
	return nil, errors.Join(errs...)
}
