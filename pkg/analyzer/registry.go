package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrRegistrySealed is returned when registering after the registry has
// been handed to a Loader.
var ErrRegistrySealed = errors.New("analyzer registry is sealed")

// Constructor builds an analyzer instance. It returns any so that the loader,
// not the registration, decides whether the value satisfies Analyzer.
// The Resolver lets a constructor load its own delegates.
type Constructor[I, O any] func(r *Resolver[I, O]) (any, error)

// Registry maps logical analyzer names to constructors.
// All implementations are registered up front; once sealed the table is
// read-only and safe for concurrent lookups.
type Registry[I, O any] struct {
	mu     sync.RWMutex
	ctors  map[string]Constructor[I, O]
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry[I, O any]() *Registry[I, O] {
	return &Registry[I, O]{
		ctors: make(map[string]Constructor[I, O]),
	}
}

// Register adds a constructor under name.
func (r *Registry[I, O]) Register(name string, ctor Constructor[I, O]) error {
	if name == "" {
		return fmt.Errorf("analyzer name not specified")
	}
	if ctor == nil {
		return fmt.Errorf("analyzer %q: constructor is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", name, ErrRegistrySealed)
	}
	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("analyzer %q already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// Seal stops further registration. Sealing twice is a no-op.
func (r *Registry[I, O]) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry[I, O]) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Has checks if an analyzer name is registered.
func (r *Registry[I, O]) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Names returns all registered analyzer names (sorted).
func (r *Registry[I, O]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry[I, O]) lookup(name string) (Constructor[I, O], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[name]
	return ctor, ok
}
