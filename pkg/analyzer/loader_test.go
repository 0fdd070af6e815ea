package analyzer

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/leapstack-labs/lineage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prefixAnalyzer wraps a delegate: "A-" + in + "-" + delegate(in).
type prefixAnalyzer struct {
	prefix   string
	delegate Analyzer[string, string]
	closed   bool
}

func (p *prefixAnalyzer) Process(in string) (string, error) {
	out, err := p.delegate.Process(in)
	if err != nil {
		return "", err
	}
	return p.prefix + "-" + in + "-" + out, nil
}

func (p *prefixAnalyzer) Close() error {
	p.closed = true
	return Close(p.delegate)
}

func prefixCtor(prefix, delegate string) Constructor[string, string] {
	return func(r *Resolver[string, string]) (any, error) {
		d, err := r.Load(delegate)
		if err != nil {
			return nil, err
		}
		return &prefixAnalyzer{prefix: prefix, delegate: d}, nil
	}
}

type notAnAnalyzer struct{}

type closeTracker struct {
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func newTestLoader(t *testing.T, register func(reg *Registry[string, string])) *Loader[string, string] {
	t.Helper()
	reg := NewRegistry[string, string]()
	register(reg)
	return NewLoader(reg, WithLogger(testutil.NewTestLogger(t)))
}

func TestLoader_LoadsRegisteredAnalyzer(t *testing.T) {
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("AnalyzerB", func(*Resolver[string, string]) (any, error) {
			return Func[string, string](func(in string) (string, error) { return "B-" + in, nil }), nil
		}))
	})

	a, err := l.Load("AnalyzerB")
	require.NoError(t, err)
	require.NotNil(t, a)

	out, err := a.Process("x")
	require.NoError(t, err)
	assert.Equal(t, "B-x", out)
}

func TestLoader_ChainWrapsDelegate(t *testing.T) {
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("AnalyzerA", prefixCtor("A", "AnalyzerB")))
		require.NoError(t, reg.Register("AnalyzerB", func(*Resolver[string, string]) (any, error) {
			return Func[string, string](func(in string) (string, error) { return "B-" + in, nil }), nil
		}))
	})

	b, err := l.Load("AnalyzerB")
	require.NoError(t, err)
	inner, err := b.Process("x")
	require.NoError(t, err)

	a, err := l.Load("AnalyzerA")
	require.NoError(t, err)
	out, err := a.Process("x")
	require.NoError(t, err)

	assert.Equal(t, "A-x-"+inner, out, "outer analyzer must wrap the delegate's output")
	assert.Equal(t, "A-x-B-x", out)
}

func TestLoader_EachLoadIsIndependent(t *testing.T) {
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("AnalyzerA", prefixCtor("A", "echo")))
		require.NoError(t, reg.Register("echo", echoCtor))
	})

	first, err := l.Load("AnalyzerA")
	require.NoError(t, err)
	second, err := l.Load("AnalyzerA")
	require.NoError(t, err)

	assert.NotSame(t, first.(*prefixAnalyzer), second.(*prefixAnalyzer))
}

func TestLoader_Failures(t *testing.T) {
	var leaked closeTracker

	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("echo", echoCtor))
		require.NoError(t, reg.Register("plain", func(*Resolver[string, string]) (any, error) {
			return notAnAnalyzer{}, nil
		}))
		require.NoError(t, reg.Register("closer", func(*Resolver[string, string]) (any, error) {
			return &leaked, nil
		}))
		require.NoError(t, reg.Register("broken", func(*Resolver[string, string]) (any, error) {
			return nil, errors.New("connection refused")
		}))
		require.NoError(t, reg.Register("panics", func(*Resolver[string, string]) (any, error) {
			panic("boom")
		}))
		require.NoError(t, reg.Register("nil", func(*Resolver[string, string]) (any, error) {
			return nil, nil
		}))
		require.NoError(t, reg.Register("typed-nil", func(*Resolver[string, string]) (any, error) {
			var p *prefixAnalyzer
			return p, nil
		}))
		require.NoError(t, reg.Register("missing-delegate", prefixCtor("A", "does-not-exist")))
		require.NoError(t, reg.Register("cycle-a", prefixCtor("A", "cycle-b")))
		require.NoError(t, reg.Register("cycle-b", prefixCtor("B", "cycle-a")))
		require.NoError(t, reg.Register("self", prefixCtor("S", "self")))
	})

	tests := []struct {
		name       string
		load       string
		wantReason LoadFailure
	}{
		{name: "unknown name", load: "nope", wantReason: FailureUnknown},
		{name: "empty name", load: "", wantReason: FailureUnknown},
		{name: "does not implement interface", load: "plain", wantReason: FailureNonconforming},
		{name: "closer that is not an analyzer", load: "closer", wantReason: FailureNonconforming},
		{name: "constructor error", load: "broken", wantReason: FailureConstruct},
		{name: "constructor panic", load: "panics", wantReason: FailurePanic},
		{name: "nil instance", load: "nil", wantReason: FailureNil},
		{name: "typed nil instance", load: "typed-nil", wantReason: FailureNil},
		{name: "delegate missing", load: "missing-delegate", wantReason: FailureConstruct},
		{name: "delegation cycle", load: "cycle-a", wantReason: FailureConstruct},
		{name: "self delegation", load: "self", wantReason: FailureConstruct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := l.Load(tt.load)
			require.Error(t, err)
			assert.Nil(t, a, "no partially constructed analyzer may escape")

			var le *LoadError
			require.ErrorAs(t, err, &le, "every failure must be a LoadError")
			assert.Equal(t, tt.load, le.Name)
			assert.Equal(t, tt.wantReason, le.Reason)
		})
	}

	assert.True(t, leaked.closed, "nonconforming values holding resources are closed")
}

func TestLoader_UnknownListsAvailable(t *testing.T) {
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("beta", echoCtor))
		require.NoError(t, reg.Register("alpha", echoCtor))
	})

	_, err := l.Load("gamma")
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, []string{"alpha", "beta"}, le.Available)
	assert.Contains(t, err.Error(), "gamma")
	assert.Contains(t, err.Error(), "alpha")
}

func TestLoader_DelegateFailureIsWrapped(t *testing.T) {
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("outer", prefixCtor("O", "inner")))
	})

	_, err := l.Load("outer")
	var outer *LoadError
	require.ErrorAs(t, err, &outer)
	assert.Equal(t, "outer", outer.Name)

	var inner *LoadError
	require.ErrorAs(t, outer.Err, &inner, "the delegate's LoadError is kept as the cause")
	assert.Equal(t, "inner", inner.Name)
	assert.Equal(t, FailureUnknown, inner.Reason)
	assert.Equal(t, []string{"outer", "inner"}, inner.Chain)
}

func TestLoader_CycleReportsChain(t *testing.T) {
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("a", prefixCtor("A", "b")))
		require.NoError(t, reg.Register("b", prefixCtor("B", "a")))
	})

	_, err := l.Load("a")
	require.Error(t, err)

	var cycle *LoadError
	for e := err; e != nil; e = errors.Unwrap(e) {
		if le, ok := e.(*LoadError); ok && le.Reason == FailureCycle {
			cycle = le
		}
	}
	require.NotNil(t, cycle, "a cycle error should be in the chain")
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Chain)
	assert.Contains(t, cycle.Error(), "a -> b -> a")
}

func TestLoader_ConstructorErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("broken", func(*Resolver[string, string]) (any, error) {
			return nil, fmt.Errorf("open: %w", cause)
		}))
	})

	_, err := l.Load("broken")
	require.ErrorIs(t, err, cause)
}

func TestLoader_ResolverExposesConstructionContext(t *testing.T) {
	var gotName string
	var gotChain []string

	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("outer", prefixCtor("O", "inner")))
		require.NoError(t, reg.Register("inner", func(r *Resolver[string, string]) (any, error) {
			gotName = r.Name()
			gotChain = r.Chain()
			r.Logger().Debug("building inner")
			return echoCtor(r)
		}))
	})

	_, err := l.Load("outer")
	require.NoError(t, err)
	assert.Equal(t, "inner", gotName)
	assert.Equal(t, []string{"outer", "inner"}, gotChain)
}

func TestLoader_ConcurrentLoads(t *testing.T) {
	l := newTestLoader(t, func(reg *Registry[string, string]) {
		require.NoError(t, reg.Register("AnalyzerA", prefixCtor("A", "echo")))
		require.NoError(t, reg.Register("echo", echoCtor))
	})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := l.Load("AnalyzerA")
			if err != nil {
				errs <- err
				return
			}
			in := fmt.Sprintf("in%d", i)
			out, err := a.Process(in)
			if err != nil {
				errs <- err
				return
			}
			if out != "A-"+in+"-"+in {
				errs <- fmt.Errorf("unexpected output %q", out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestClose(t *testing.T) {
	echo := Func[string, string](func(in string) (string, error) { return in, nil })
	assert.NoError(t, Close(echo), "analyzers without resources are left untouched")

	inner := &prefixAnalyzer{prefix: "I", delegate: echo}
	outer := &prefixAnalyzer{prefix: "O", delegate: inner}
	require.NoError(t, Close(outer))
	assert.True(t, outer.closed)
	assert.True(t, inner.closed)
}
