package analyzer

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
)

// Option configures a Loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to trace load attempts.
// A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *loaderOptions) {
		o.logger = logger
	}
}

// Loader resolves analyzer names against a sealed Registry and constructs
// new instances. Every Load is independent: instances are never cached or
// shared, and the loader itself holds no mutable state.
type Loader[I, O any] struct {
	registry *Registry[I, O]
	logger   *slog.Logger
}

// NewLoader creates a loader over reg and seals reg, so the set of known
// implementations is fixed before the first Load.
func NewLoader[I, O any](reg *Registry[I, O], opts ...Option) *Loader[I, O] {
	o := loaderOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	reg.Seal()
	return &Loader[I, O]{
		registry: reg,
		logger:   o.logger,
	}
}

// Names returns the names this loader can resolve (sorted).
func (l *Loader[I, O]) Names() []string {
	return l.registry.Names()
}

// Load constructs a new instance of the named analyzer.
//
// On any failure (unknown name, constructor error or panic, a value that is
// not an Analyzer, a delegate that fails to load) it returns a *LoadError
// and no instance.
func (l *Loader[I, O]) Load(name string) (Analyzer[I, O], error) {
	return l.load(name, nil)
}

func (l *Loader[I, O]) load(name string, parents []string) (Analyzer[I, O], error) {
	chain := append(slices.Clone(parents), name)
	logger := l.logger.With("analyzer", name, "depth", len(parents))
	logger.Debug("load requested")

	a, err := l.resolve(name, parents, chain, logger)
	if err != nil {
		if len(parents) == 0 {
			logger.Warn("load failed", "error", err)
		} else {
			logger.Debug("delegate load failed", "chain", chain, "error", err)
		}
		return nil, err
	}

	logger.Debug("analyzer constructed", "type", fmt.Sprintf("%T", a))
	return a, nil
}

func (l *Loader[I, O]) resolve(name string, parents, chain []string, logger *slog.Logger) (Analyzer[I, O], error) {
	if slices.Contains(parents, name) {
		return nil, &LoadError{Name: name, Reason: FailureCycle, Chain: chain}
	}

	ctor, ok := l.registry.lookup(name)
	if !ok {
		return nil, &LoadError{
			Name:      name,
			Reason:    FailureUnknown,
			Chain:     chain,
			Available: l.registry.Names(),
		}
	}

	logger.Debug("resolving", "chain", chain)

	v, panicked, err := construct(ctor, &Resolver[I, O]{loader: l, name: name, chain: chain})
	switch {
	case panicked:
		return nil, &LoadError{Name: name, Reason: FailurePanic, Chain: chain, Err: err}
	case err != nil:
		_ = Close(v)
		return nil, &LoadError{Name: name, Reason: FailureConstruct, Chain: chain, Err: err}
	case isNil(v):
		return nil, &LoadError{Name: name, Reason: FailureNil, Chain: chain}
	}

	a, ok := v.(Analyzer[I, O])
	if !ok {
		_ = Close(v)
		return nil, &LoadError{
			Name:   name,
			Reason: FailureNonconforming,
			Chain:  chain,
			Err:    fmt.Errorf("got %T", v),
		}
	}
	return a, nil
}

// construct runs ctor, turning a panic into an error.
func construct[I, O any](ctor Constructor[I, O], r *Resolver[I, O]) (v any, panicked bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			v = nil
			panicked = true
			err = fmt.Errorf("%v", p)
		}
	}()
	v, err = ctor(r)
	return v, false, err
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Resolver is handed to a Constructor while it runs. It identifies the
// analyzer being built and loads delegates on its behalf, tracking the
// construction path so a delegation cycle fails instead of recursing.
type Resolver[I, O any] struct {
	loader *Loader[I, O]
	name   string
	chain  []string
}

// Name returns the name of the analyzer under construction.
func (r *Resolver[I, O]) Name() string {
	return r.name
}

// Chain returns the construction path from the outermost analyzer to this one.
func (r *Resolver[I, O]) Chain() []string {
	return slices.Clone(r.chain)
}

// Logger returns a logger scoped to the analyzer under construction.
func (r *Resolver[I, O]) Logger() *slog.Logger {
	return r.loader.logger.With("analyzer", r.name)
}

// Load constructs a delegate analyzer. A constructor should return the error
// as-is; the outer Load then fails with a LoadError wrapping it.
func (r *Resolver[I, O]) Load(name string) (Analyzer[I, O], error) {
	return r.loader.load(name, r.chain)
}
