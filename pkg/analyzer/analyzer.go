// Package analyzer provides the pluggable analyzer contract and the loader
// that resolves analyzer implementations by name at runtime.
//
// Implementations are registered in an explicit Registry under a logical
// name, before any load happens. A Loader then constructs a fresh instance
// for each Load call and hands it back through the Analyzer interface, so
// callers never see concrete types.
//
// An implementation's constructor may itself load another analyzer through
// the Resolver it receives, forming a delegation chain that is fixed once
// construction finishes:
//
//	reg := analyzer.NewRegistry[string, string]()
//	_ = reg.Register("inner", func(*analyzer.Resolver[string, string]) (any, error) {
//	    return analyzer.Func[string, string](strings.ToUpper), nil
//	})
//	_ = reg.Register("outer", func(r *analyzer.Resolver[string, string]) (any, error) {
//	    inner, err := r.Load("inner")
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &wrapper{next: inner}, nil
//	})
//	a, err := analyzer.NewLoader(reg).Load("outer")
package analyzer

import "io"

// Analyzer converts an input into an analysis result.
// Process returns an *AnalysisError when it cannot produce a result.
// Implementations must not use process-wide state as a side channel.
type Analyzer[I, O any] interface {
	Process(in I) (O, error)
}

// Func adapts an ordinary function to the Analyzer interface.
type Func[I, O any] func(in I) (O, error)

// Process calls f(in).
func (f Func[I, O]) Process(in I) (O, error) {
	return f(in)
}

// Close releases resources held by an analyzer if it implements io.Closer.
// Analyzers without resources are left untouched.
func Close(a any) error {
	if c, ok := a.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
