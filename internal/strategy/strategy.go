// Package strategy defines the decision contract for trading strategies and
// the registry that resolves strategy names to runnable instances.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"tradesim/internal/domain"
)

// ErrUnknownStrategy reports a strategy name with no registered factory or
// stored definition.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is the decision contract all trading strategies implement. A
// strategy must be a pure function of its input window plus configuration
// fixed at construction; it holds no other mutable state.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// MaxLookback returns the number of candles the strategy needs before it
	// can decide. The orchestrator sizes the rolling window to this value.
	MaxLookback() int

	// GenerateSignal inspects the most recent candles (oldest first) and
	// returns a trade signal, or nil when no actionable condition is met.
	GenerateSignal(window []domain.Candle) *domain.Signal
}

// Factory builds a strategy instance from a YAML parameter payload. An empty
// payload yields the strategy's defaults.
type Factory func(params []byte) (Strategy, error)

// Registry holds named strategy factories. Registration replaces any previous
// factory for the same name atomically; instances already handed out are
// unaffected.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	r.mu.Unlock()
}

// Lookup returns the factory for name. The second return value indicates
// whether the factory was found.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Build constructs a strategy instance from the named factory and the given
// parameter payload.
func (r *Registry) Build(name string, params []byte) (Strategy, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	s, err := f(params)
	if err != nil {
		return nil, fmt.Errorf("building strategy %q: %w", name, err)
	}
	return s, nil
}

// List returns a sorted slice of all registered factory names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog resolves strategy names to runnable instances, combining built-in
// factories with user-defined entries from the definition store. The store
// may be nil, in which case only built-ins resolve.
type Catalog struct {
	registry *Registry
	defs     *DefinitionStore
}

// NewCatalog creates a Catalog over the given registry and optional
// definition store.
func NewCatalog(registry *Registry, defs *DefinitionStore) *Catalog {
	return &Catalog{registry: registry, defs: defs}
}

// Build constructs a fresh strategy instance for name. Stored definitions
// take precedence over a built-in of the same name; each call returns a new
// instance so concurrent runs never share strategy state.
func (c *Catalog) Build(name string) (Strategy, error) {
	if c.defs != nil {
		if def, err := c.defs.Get(name); err == nil {
			return c.registry.Build(def.Kind, []byte(def.Params))
		}
	}
	return c.registry.Build(name, nil)
}

// List returns the sorted union of built-in and stored strategy names.
func (c *Catalog) List() []string {
	seen := make(map[string]struct{})
	for _, name := range c.registry.List() {
		seen[name] = struct{}{}
	}
	if c.defs != nil {
		if defs, err := c.defs.List(); err == nil {
			for _, def := range defs {
				seen[def.Name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
