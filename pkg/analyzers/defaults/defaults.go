// Package defaults provides a lineage analyzer that fills in the default
// catalog and database of a statement before delegating.
package defaults

import (
	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/leapstack-labs/lineage/pkg/core"
)

// Name is the registry name of the analyzer.
const Name = "defaults"

type lineageAnalyzer = analyzer.Analyzer[core.Statement, []core.LineageRecord]

// Analyzer applies a default catalog and database to statements that do
// not carry their own.
type Analyzer struct {
	name     string
	catalog  string
	database string
	delegate lineageAnalyzer
}

// Register adds the analyzer to reg under Name, delegating to the analyzer
// named delegate.
func Register(reg *analyzer.Registry[core.Statement, []core.LineageRecord], delegate, catalog, database string) error {
	return reg.Register(Name, func(r *analyzer.Resolver[core.Statement, []core.LineageRecord]) (any, error) {
		d, err := r.Load(delegate)
		if err != nil {
			return nil, err
		}
		return &Analyzer{name: r.Name(), catalog: catalog, database: database, delegate: d}, nil
	})
}

// Process fills missing defaults and runs the delegate.
func (a *Analyzer) Process(stmt core.Statement) ([]core.LineageRecord, error) {
	if stmt.Catalog == "" {
		stmt.Catalog = a.catalog
	}
	if stmt.Database == "" {
		stmt.Database = a.database
	}
	records, err := a.delegate.Process(stmt)
	if err != nil {
		return nil, analyzer.Fail(a.name, err)
	}
	return records, nil
}

// Close closes the delegate.
func (a *Analyzer) Close() error {
	return analyzer.Close(a.delegate)
}
