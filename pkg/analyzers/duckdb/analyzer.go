// Package duckdb provides a lineage analyzer that uses DuckDB's own parser.
//
// The statement's query is handed to json_serialize_sql and the resulting
// tree is walked to map every output column back to the physical columns it
// reads. INSERT INTO and CREATE TABLE|VIEW ... AS name the target table;
// a bare query takes its target from the Statement.
//
// Register the analyzer with a registry before building a loader:
//
//	reg := analyzer.NewRegistry[core.Statement, []core.LineageRecord]()
//	_ = duckdb.Register(reg)
package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/leapstack-labs/lineage/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Name is the registry name of the analyzer.
const Name = "duckdb"

// Analyzer extracts column-level lineage records from SQL statements.
type Analyzer struct {
	name   string
	db     *sql.DB
	logger *slog.Logger
}

// Open creates an analyzer backed by a private in-memory DuckDB instance.
// A nil logger discards output.
func Open(name string, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}

	return &Analyzer{name: name, db: db, logger: logger}, nil
}

// Register adds the analyzer to reg under Name.
func Register(reg *analyzer.Registry[core.Statement, []core.LineageRecord]) error {
	return reg.Register(Name, func(r *analyzer.Resolver[core.Statement, []core.LineageRecord]) (any, error) {
		a, err := Open(r.Name(), r.Logger())
		if err != nil {
			return nil, err
		}
		return a, nil
	})
}

// Close releases the DuckDB connection.
func (a *Analyzer) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Process analyzes one statement and returns one record per source column
// to target column edge. Constant outputs produce no records.
func (a *Analyzer) Process(stmt core.Statement) ([]core.LineageRecord, error) {
	target, err := a.target(stmt)
	if err != nil {
		return nil, err
	}

	data, err := a.serialize(target.Query)
	if err != nil {
		return nil, analyzer.Fail(a.name, err)
	}

	root, err := decodeQuery(data)
	if err != nil {
		return nil, analyzer.Fail(a.name, err)
	}

	w := &walker{catalog: stmt.Catalog, database: stmt.Database}
	cols, err := w.query(root, nil)
	if err != nil {
		return nil, analyzer.Fail(a.name, err)
	}

	// Columns at and after an unexpanded star cannot be matched to a
	// target column list by position.
	star := slices.IndexFunc(cols, column.unexpanded)
	if star < 0 && len(target.Columns) > 0 && len(target.Columns) != len(cols) {
		return nil, analyzer.Failf(a.name, "target lists %d columns but query produces %d", len(target.Columns), len(cols))
	}

	catalog, database, table := qualify(target.Parts, stmt.Catalog, stmt.Database)
	edges := func(col column, targetColumn string) []core.LineageRecord {
		out := make([]core.LineageRecord, 0, len(col.Origins))
		for _, o := range col.Origins {
			out = append(out, core.LineageRecord{
				TaskID:         stmt.TaskID,
				SQLID:          stmt.SQLID,
				SourceCatalog:  o.Catalog,
				SourceDatabase: o.Database,
				SourceTable:    o.Table,
				SourceColumn:   o.Column,
				TargetCatalog:  catalog,
				TargetDatabase: database,
				TargetTable:    table,
				TargetColumn:   targetColumn,
				Transform:      col.Transform,
				Invalid:        col.Invalid || o.Invalid,
			})
		}
		return out
	}

	var records []core.LineageRecord
	if len(target.Columns) == 0 {
		for _, col := range cols {
			records = append(records, edges(col, col.Name)...)
		}
	} else {
		known := len(cols)
		if star >= 0 {
			known = star
		}
		for i := 0; i < known && i < len(target.Columns); i++ {
			records = append(records, edges(cols[i], target.Columns[i])...)
		}
		if star >= 0 && star < len(target.Columns) {
			rest := column{Invalid: true}
			for _, col := range cols[star:] {
				rest.Origins = append(rest.Origins, col.Origins...)
			}
			rest.Origins = dedupe(rest.Origins)
			if len(rest.Origins) == 0 {
				rest.Origins = []origin{{Column: "*", Invalid: true}}
			}
			for _, name := range target.Columns[star:] {
				records = append(records, edges(rest, name)...)
			}
		}
	}

	a.logger.Debug("statement analyzed",
		slog.String("task_id", string(stmt.TaskID)),
		slog.String("sql_id", string(stmt.SQLID)),
		slog.Int("columns", len(cols)),
		slog.Int("records", len(records)))

	return records, nil
}

func (a *Analyzer) target(stmt core.Statement) (writeTarget, error) {
	if t, ok := splitWrite(stmt.SQL); ok {
		if t.Query == "" {
			return writeTarget{}, analyzer.Failf(a.name, "statement writes to %v but has no query", t.Parts)
		}
		return t, nil
	}

	if stmt.Target == "" {
		return writeTarget{}, analyzer.Failf(a.name, "statement is not an INSERT or CREATE ... AS and no target table was given")
	}
	parts := splitQualified(stmt.Target)
	if parts == nil {
		return writeTarget{}, analyzer.Failf(a.name, "invalid target table name %q", stmt.Target)
	}
	return writeTarget{Parts: parts, Query: stmt.SQL}, nil
}

func (a *Analyzer) serialize(query string) ([]byte, error) {
	if a.db == nil {
		return nil, errors.New("analyzer is closed")
	}
	var out string
	if err := a.db.QueryRow(`SELECT json_serialize_sql(?::VARCHAR)::VARCHAR`, query).Scan(&out); err != nil {
		return nil, fmt.Errorf("failed to serialize statement: %w", err)
	}
	return []byte(out), nil
}

// qualify fills the catalog and database of a target name from defaults.
func qualify(parts []string, catalog, database string) (string, string, string) {
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return catalog, parts[0], parts[1]
	case 1:
		return catalog, database, parts[0]
	}
	return catalog, database, ""
}
