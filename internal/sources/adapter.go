// Package sources collects raw trend signals from pluggable source adapters.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
)

// Adapter is the capability every trend source provides.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, markets, keywords []string) ([]core.TrendItem, error)
	HealthCheck(ctx context.Context) bool
}

// Factory builds an adapter from configuration.
type Factory func(cfg *config.Config) (Adapter, error)

// Registry maps adapter names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("rss", func(cfg *config.Config) (Adapter, error) {
		return NewRSSAdapter(cfg.Sources.RSS), nil
	})
	r.Register("file", func(cfg *config.Config) (Adapter, error) {
		if cfg.Sources.File.Path == "" {
			return nil, fmt.Errorf("file source requires sources.file.path")
		}
		return NewFileAdapter(cfg.Sources.File.Path), nil
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve builds the adapters named in sources.enabled. Unknown names and
// factory failures are configuration errors.
func (r *Registry) Resolve(cfg *config.Config) ([]Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var adapters []Adapter
	var problems []string
	seen := make(map[string]bool)
	for _, name := range cfg.Sources.Enabled {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		factory, ok := r.factories[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown source %q", name))
			continue
		}
		adapter, err := factory(cfg)
		if err != nil {
			problems = append(problems, fmt.Sprintf("source %s: %v", name, err))
			continue
		}
		adapters = append(adapters, adapter)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrConfigurationInvalid, strings.Join(problems, "; "))
	}
	return adapters, nil
}
