package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/lineage/internal/testutil"
	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/leapstack-labs/lineage/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	closed *atomic.Int32
	active *atomic.Int32
	peak   *atomic.Int32
}

func (e *echo) Process(stmt core.Statement) ([]core.LineageRecord, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if stmt.SQL == "bad" {
		return nil, analyzer.Failf("echo", "cannot analyze %q", stmt.SQL)
	}
	return []core.LineageRecord{{
		TaskID: stmt.TaskID, SQLID: stmt.SQLID,
		SourceTable: "src", SourceColumn: stmt.SQL,
		TargetTable: "dst", TargetColumn: stmt.SQL,
	}}, nil
}

func (e *echo) Close() error {
	e.closed.Add(1)
	return nil
}

type fixture struct {
	loader *analyzer.Loader[core.Statement, []core.LineageRecord]
	closed atomic.Int32
	peak   atomic.Int32
	loads  atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	var active atomic.Int32

	reg := analyzer.NewRegistry[core.Statement, []core.LineageRecord]()
	require.NoError(t, reg.Register("echo", func(*analyzer.Resolver[core.Statement, []core.LineageRecord]) (any, error) {
		f.loads.Add(1)
		return &echo{closed: &f.closed, active: &active, peak: &f.peak}, nil
	}))
	require.NoError(t, reg.Register("broken", func(*analyzer.Resolver[core.Statement, []core.LineageRecord]) (any, error) {
		return nil, errors.New("no connection")
	}))
	f.loader = analyzer.NewLoader(reg, analyzer.WithLogger(testutil.NewTestLogger(t)))
	return f
}

func statements(sqls ...string) []core.Statement {
	out := make([]core.Statement, len(sqls))
	for i, s := range sqls {
		out[i] = core.Statement{TaskID: "task", SQLID: core.SQLID(fmt.Sprintf("q%d", i)), SQL: s}
	}
	return out
}

func TestRun_IsolatesFailures(t *testing.T) {
	f := newFixture(t)

	results := Run(context.Background(), f.loader, "echo", statements("a", "bad", "c"), Options{
		Logger: testutil.NewTestLogger(t),
	})
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, core.SQLID("q0"), results[0].Statement.SQLID)
	require.Len(t, results[0].Records, 1)
	assert.Equal(t, "a", results[0].Records[0].SourceColumn)

	var ae *analyzer.AnalysisError
	require.ErrorAs(t, results[1].Err, &ae)
	assert.Equal(t, "echo", ae.Analyzer)

	assert.NoError(t, results[2].Err)

	assert.Len(t, Records(results), 2)
	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, core.SQLID("q1"), failed[0].Statement.SQLID)
}

func TestRun_FreshInstancePerStatement(t *testing.T) {
	f := newFixture(t)

	Run(context.Background(), f.loader, "echo", statements("a", "b", "c", "d"), Options{Concurrency: 2})

	assert.Equal(t, int32(4), f.loads.Load())
	assert.Equal(t, int32(4), f.closed.Load(), "every instance is closed after use")
}

func TestRun_RespectsConcurrency(t *testing.T) {
	f := newFixture(t)

	sqls := make([]string, 12)
	for i := range sqls {
		sqls[i] = fmt.Sprintf("c%d", i)
	}
	results := Run(context.Background(), f.loader, "echo", statements(sqls...), Options{Concurrency: 3})

	assert.Len(t, Records(results), 12)
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
}

func TestRun_LoadFailureAffectsEveryStatement(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"broken", "missing"} {
		results := Run(context.Background(), f.loader, name, statements("a", "b"), Options{})
		for _, r := range results {
			var le *analyzer.LoadError
			require.ErrorAs(t, r.Err, &le, name)
			assert.Equal(t, name, le.Name)
			assert.Nil(t, r.Records)
		}
	}
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, f.loader, "echo", statements("a", "b"), Options{})
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, f.loads.Load())
}

func TestRun_Empty(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, Run(context.Background(), f.loader, "echo", nil, Options{}))
}

