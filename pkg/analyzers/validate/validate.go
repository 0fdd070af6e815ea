// Package validate provides a lineage analyzer that runs a delegate analyzer
// and then flags the records downstream consumers should not trust.
package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/leapstack-labs/lineage/pkg/core"
)

// Name is the registry name of the analyzer.
const Name = "validate"

type lineageAnalyzer = analyzer.Analyzer[core.Statement, []core.LineageRecord]

// Analyzer wraps a delegate and performs the validation pass on its output.
type Analyzer struct {
	name     string
	delegate lineageAnalyzer
	logger   *slog.Logger
}

// New wraps delegate. A nil logger discards output.
func New(name string, delegate lineageAnalyzer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{name: name, delegate: delegate, logger: logger}
}

// Register adds the analyzer to reg under Name. The delegate is loaded by
// name when the analyzer is constructed, so a missing delegate fails the load.
func Register(reg *analyzer.Registry[core.Statement, []core.LineageRecord], delegate string) error {
	return reg.Register(Name, func(r *analyzer.Resolver[core.Statement, []core.LineageRecord]) (any, error) {
		d, err := r.Load(delegate)
		if err != nil {
			return nil, err
		}
		return New(r.Name(), d, r.Logger()), nil
	})
}

// Process runs the delegate, drops duplicate edges and marks suspicious
// records invalid.
func (a *Analyzer) Process(stmt core.Statement) ([]core.LineageRecord, error) {
	records, err := a.delegate.Process(stmt)
	if err != nil {
		return nil, analyzer.Fail(a.name, err)
	}

	seen := make(map[core.RecordKey]struct{}, len(records))
	out := make([]core.LineageRecord, 0, len(records))
	flagged := 0
	for _, rec := range records {
		key := rec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if reason := Check(rec); reason != "" && !rec.Invalid {
			rec.MarkInvalid()
			flagged++
			a.logger.Debug("record marked invalid",
				slog.String("source", rec.BuildSourceColumnName()),
				slog.String("target", rec.BuildTargetColumnName()),
				slog.String("reason", reason))
		}
		out = append(out, rec)
	}

	if flagged > 0 {
		a.logger.Info("validation flagged records",
			slog.String("sql_id", string(stmt.SQLID)),
			slog.Int("flagged", flagged),
			slog.Int("total", len(out)))
	}
	return out, nil
}

// Close closes the delegate.
func (a *Analyzer) Close() error {
	return analyzer.Close(a.delegate)
}

// Check returns why a record cannot be trusted, or "" if it can.
func Check(rec core.LineageRecord) string {
	switch {
	case rec.SourceTable == "":
		return "source table is unknown"
	case rec.SourceColumn == "" || rec.SourceColumn == "*":
		return "source column is unknown"
	case rec.TargetTable == "":
		return "target table is unknown"
	case rec.TargetColumn == "" || rec.TargetColumn == "*":
		return "target column is unknown"
	}

	parts := []struct{ field, value string }{
		{"source catalog", rec.SourceCatalog},
		{"source database", rec.SourceDatabase},
		{"source table", rec.SourceTable},
		{"source column", rec.SourceColumn},
		{"target catalog", rec.TargetCatalog},
		{"target database", rec.TargetDatabase},
		{"target table", rec.TargetTable},
		{"target column", rec.TargetColumn},
	}
	for _, p := range parts {
		if strings.Contains(p.value, core.Delimiter) {
			return fmt.Sprintf("%s %q contains the name delimiter", p.field, p.value)
		}
	}
	return ""
}
