// Package batch runs a lineage analyzer over many statements.
//
// Each statement gets its own analyzer instance, so a failed load or a
// failed analysis is recorded on that statement's Result and never stops
// the rest of the batch.
package batch

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/leapstack-labs/lineage/pkg/core"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 4

// Loader constructs lineage analyzers by name.
type Loader interface {
	Load(name string) (analyzer.Analyzer[core.Statement, []core.LineageRecord], error)
}

// Options configures Run.
type Options struct {
	Concurrency int
	Logger      *slog.Logger
}

// Result is the outcome for one statement. Err is a *analyzer.LoadError,
// a *analyzer.AnalysisError or the context error.
type Result struct {
	Statement core.Statement
	Records   []core.LineageRecord
	Err       error
}

// Run analyzes stmts with the analyzer called name. Results are returned
// in input order. Run stops starting new statements once ctx is done; the
// statements it skipped carry ctx.Err().
func Run(ctx context.Context, loader Loader, name string, stmts []core.Statement, opts Options) []Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result, len(stmts))

	var g errgroup.Group
	g.SetLimit(limit)

	for i := range stmts {
		results[i].Statement = stmts[i]
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			res := &results[i]
			if err := ctx.Err(); err != nil {
				res.Err = err
				return nil
			}
			res.Records, res.Err = analyze(loader, name, res.Statement)
			if res.Err != nil {
				logger.Warn("statement failed",
					slog.String("sql_id", string(res.Statement.SQLID)),
					slog.String("error", res.Err.Error()))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func analyze(loader Loader, name string, stmt core.Statement) (records []core.LineageRecord, err error) {
	a, err := loader.Load(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := analyzer.Close(a); cerr != nil && err == nil {
			err = analyzer.Fail(name, cerr)
		}
	}()
	return a.Process(stmt)
}

// Records flattens the records of the successful results.
func Records(results []Result) []core.LineageRecord {
	var out []core.LineageRecord
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Records...)
		}
	}
	return out
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
