// Package script provides lineage analyzers written in Starlark.
//
// A script is a .star file that defines a process function. It receives the
// statement as a struct with the fields task_id, sql_id, sql, catalog,
// database and target, and returns a list of dicts keyed by record field:
//
//	def process(stmt):
//	    return [{
//	        "source_table": "orders",
//	        "source_column": "id",
//	        "target_table": stmt.target,
//	        "target_column": "order_id",
//	    }]
//
// When the script is registered with a delegate, a predeclared delegate(stmt)
// function runs it and returns its records in the same dict form, so a script
// can post-process another analyzer.
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/leapstack-labs/lineage/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// EntryPoint is the function every script must define.
const EntryPoint = "process"

type lineageAnalyzer = analyzer.Analyzer[core.Statement, []core.LineageRecord]

// Analyzer runs a compiled script. Its globals are frozen after loading, so
// concurrent Process calls each get their own thread and share nothing else.
type Analyzer struct {
	name     string
	path     string
	process  starlark.Callable
	delegate lineageAnalyzer
	logger   *slog.Logger
}

// Load reads and executes the script at path. delegate may be nil.
func Load(name, path string, delegate lineageAnalyzer, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	a := &Analyzer{name: name, path: path, delegate: delegate, logger: logger}

	thread := &starlark.Thread{
		Name: fmt.Sprintf("load:%s", name),
		Print: func(_ *starlark.Thread, msg string) {
			logger.Debug("script output", slog.String("msg", msg))
		},
	}

	globals, err := starlark.ExecFile(thread, path, content, a.predeclared()) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", filepath.Base(path), err)
	}

	fn, ok := globals[EntryPoint].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%s does not define a %s function", filepath.Base(path), EntryPoint)
	}
	a.process = fn
	return a, nil
}

// Register adds a script analyzer to reg under name. If delegate is not
// empty it is loaded when the script is constructed.
func Register(reg *analyzer.Registry[core.Statement, []core.LineageRecord], name, path, delegate string) error {
	return reg.Register(name, func(r *analyzer.Resolver[core.Statement, []core.LineageRecord]) (any, error) {
		var d lineageAnalyzer
		if delegate != "" {
			var err error
			if d, err = r.Load(delegate); err != nil {
				return nil, err
			}
		}
		a, err := Load(r.Name(), path, d, r.Logger())
		if err != nil {
			_ = analyzer.Close(d)
			return nil, err
		}
		return a, nil
	})
}

func (a *Analyzer) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"struct":   starlark.NewBuiltin("struct", starlarkstruct.Make),
		"delegate": starlark.NewBuiltin("delegate", a.callDelegate),
	}
}

// Process calls the script's process function on a fresh thread.
func (a *Analyzer) Process(stmt core.Statement) ([]core.LineageRecord, error) {
	thread := &starlark.Thread{
		Name: fmt.Sprintf("%s:%s", a.name, stmt.SQLID),
		Print: func(_ *starlark.Thread, msg string) {
			a.logger.Debug("script output", slog.String("sql_id", string(stmt.SQLID)), slog.String("msg", msg))
		},
	}
	thread.SetLocal(statementKey, stmt)

	v, err := starlark.Call(thread, a.process, starlark.Tuple{statementValue(stmt)}, nil)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, analyzer.Failf(a.name, "%s", evalErr.Backtrace())
		}
		return nil, analyzer.Fail(a.name, err)
	}

	records, err := toRecords(v, stmt)
	if err != nil {
		return nil, analyzer.Fail(a.name, err)
	}
	return records, nil
}

// Close closes the delegate, if any.
func (a *Analyzer) Close() error {
	return analyzer.Close(a.delegate)
}

const statementKey = "lineage.statement"

// callDelegate implements the delegate(stmt) builtin.
func (a *Analyzer) callDelegate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if a.delegate == nil {
		return nil, fmt.Errorf("%s: script %q has no delegate", b.Name(), a.name)
	}

	var arg starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &arg); err != nil {
		return nil, err
	}

	base, _ := thread.Local(statementKey).(core.Statement)
	stmt, err := toStatement(arg, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	records, err := a.delegate.Process(stmt)
	if err != nil {
		return nil, err
	}

	list := make([]starlark.Value, len(records))
	for i := range records {
		list[i] = recordValue(&records[i])
	}
	return starlark.NewList(list), nil
}

// statementValue exposes stmt to a script.
func statementValue(stmt core.Statement) starlark.Value {
	return starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
		"task_id":  starlark.String(stmt.TaskID),
		"sql_id":   starlark.String(stmt.SQLID),
		"sql":      starlark.String(stmt.SQL),
		"catalog":  starlark.String(stmt.Catalog),
		"database": starlark.String(stmt.Database),
		"target":   starlark.String(stmt.Target),
	})
}

// toStatement reads a statement struct passed back by a script. Fields the
// script left out keep their values from base.
func toStatement(v starlark.Value, base core.Statement) (core.Statement, error) {
	s, ok := v.(*starlarkstruct.Struct)
	if !ok {
		return core.Statement{}, fmt.Errorf("want struct, got %s", v.Type())
	}

	stmt := base
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"sql", &stmt.SQL},
		{"catalog", &stmt.Catalog},
		{"database", &stmt.Database},
		{"target", &stmt.Target},
	} {
		attr, err := s.Attr(f.name)
		if err != nil || attr == nil {
			continue
		}
		str, ok := starlark.AsString(attr)
		if !ok {
			return core.Statement{}, fmt.Errorf("field %s: want string, got %s", f.name, attr.Type())
		}
		*f.dst = str
	}
	return stmt, nil
}

// recordValue converts a record to the dict form scripts return.
func recordValue(rec *core.LineageRecord) starlark.Value {
	d := starlark.NewDict(len(recordFields) + 1)
	for _, f := range recordFields {
		_ = d.SetKey(starlark.String(f.key), starlark.String(*f.get(rec)))
	}
	_ = d.SetKey(starlark.String("invalid"), starlark.Bool(rec.Invalid))
	return d
}

type recordField struct {
	key string
	get func(*core.LineageRecord) *string
}

var recordFields = []recordField{
	{"source_catalog", func(r *core.LineageRecord) *string { return &r.SourceCatalog }},
	{"source_database", func(r *core.LineageRecord) *string { return &r.SourceDatabase }},
	{"source_table", func(r *core.LineageRecord) *string { return &r.SourceTable }},
	{"source_column", func(r *core.LineageRecord) *string { return &r.SourceColumn }},
	{"target_catalog", func(r *core.LineageRecord) *string { return &r.TargetCatalog }},
	{"target_database", func(r *core.LineageRecord) *string { return &r.TargetDatabase }},
	{"target_table", func(r *core.LineageRecord) *string { return &r.TargetTable }},
	{"target_column", func(r *core.LineageRecord) *string { return &r.TargetColumn }},
	{"transform", func(r *core.LineageRecord) *string { return &r.Transform }},
}

// toRecords converts the value returned by process. Task and statement ids
// always come from stmt; missing catalogs and databases default to the
// statement's.
func toRecords(v starlark.Value, stmt core.Statement) ([]core.LineageRecord, error) {
	if v == starlark.None {
		return nil, nil
	}
	seq, ok := v.(starlark.Indexable)
	if !ok {
		return nil, fmt.Errorf("%s must return a list of dicts, got %s", EntryPoint, v.Type())
	}

	records := make([]core.LineageRecord, 0, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		rec, err := toRecord(seq.Index(i), stmt)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(v starlark.Value, stmt core.Statement) (core.LineageRecord, error) {
	d, ok := v.(*starlark.Dict)
	if !ok {
		return core.LineageRecord{}, fmt.Errorf("want dict, got %s", v.Type())
	}

	rec := core.LineageRecord{
		TaskID:         stmt.TaskID,
		SQLID:          stmt.SQLID,
		SourceCatalog:  stmt.Catalog,
		SourceDatabase: stmt.Database,
		TargetCatalog:  stmt.Catalog,
		TargetDatabase: stmt.Database,
	}

	for _, item := range d.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return core.LineageRecord{}, fmt.Errorf("key must be string, got %s", item[0].Type())
		}

		if key == "invalid" {
			if item[1].Truth() {
				rec.MarkInvalid()
			}
			continue
		}

		dst := lookupField(&rec, key)
		if dst == nil {
			return core.LineageRecord{}, fmt.Errorf("unknown field %q", key)
		}
		if item[1] == starlark.None {
			continue
		}
		str, ok := starlark.AsString(item[1])
		if !ok {
			return core.LineageRecord{}, fmt.Errorf("field %s: want string, got %s", key, item[1].Type())
		}
		*dst = strings.TrimSpace(str)
	}
	return rec, nil
}

func lookupField(rec *core.LineageRecord, key string) *string {
	for _, f := range recordFields {
		if f.key == key {
			return f.get(rec)
		}
	}
	return nil
}
