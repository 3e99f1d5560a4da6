// Package fetch dispatches fetch methods to their strategy implementations.
package fetch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Registry maps the closed set of fetch methods to strategies.
type Registry struct {
	strategies map[scraper.FetchMethod]scraper.FetchStrategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[scraper.FetchMethod]scraper.FetchStrategy)}
}

// Register binds a strategy to a method, replacing any previous binding.
func (r *Registry) Register(method scraper.FetchMethod, strategy scraper.FetchStrategy) {
	r.strategies[method] = strategy
}

// Strategy resolves the strategy for a method.
func (r *Registry) Strategy(method scraper.FetchMethod) (scraper.FetchStrategy, error) {
	s, ok := r.strategies[method]
	if !ok {
		return nil, fmt.Errorf("no strategy registered for method %q (have %s)", method, r.known())
	}
	return s, nil
}

func (r *Registry) known() string {
	names := make([]string, 0, len(r.strategies))
	for m := range r.strategies {
		names = append(names, string(m))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
