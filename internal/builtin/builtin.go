// Package builtin assembles the registry of lineage analyzers shipped with
// the binary, plus any script analyzers named in configuration.
package builtin

import (
	"fmt"
	"maps"
	"slices"

	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/leapstack-labs/lineage/pkg/analyzers/defaults"
	"github.com/leapstack-labs/lineage/pkg/analyzers/duckdb"
	"github.com/leapstack-labs/lineage/pkg/analyzers/script"
	"github.com/leapstack-labs/lineage/pkg/analyzers/validate"
	"github.com/leapstack-labs/lineage/pkg/core"
)

// Registry is the registry of the lineage variant.
type Registry = analyzer.Registry[core.Statement, []core.LineageRecord]

// Loader is the loader of the lineage variant.
type Loader = analyzer.Loader[core.Statement, []core.LineageRecord]

// Script describes a Starlark analyzer.
type Script struct {
	Path     string
	Delegate string
}

// Options controls how the chain analyzers are wired.
type Options struct {
	// Delegates maps a chain analyzer to the analyzer it wraps.
	// Missing entries fall back to DefaultDelegates.
	Delegates map[string]string

	// Catalog and Database are applied by the defaults analyzer.
	Catalog  string
	Database string

	Scripts map[string]Script
}

// Qualifiers applied to unqualified names when none are configured.
const (
	DefaultCatalog  = "default_catalog"
	DefaultDatabase = "default_database"
)

// DefaultDelegates is the stock chain: validate -> defaults -> duckdb.
func DefaultDelegates() map[string]string {
	return map[string]string{
		validate.Name: defaults.Name,
		defaults.Name: duckdb.Name,
	}
}

// NewRegistry registers every built-in analyzer and each configured script.
// The registry is returned unsealed; NewLoader seals it.
func NewRegistry(opts Options) (*Registry, error) {
	delegates := DefaultDelegates()
	maps.Copy(delegates, opts.Delegates)

	if opts.Catalog == "" {
		opts.Catalog = DefaultCatalog
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}

	reg := analyzer.NewRegistry[core.Statement, []core.LineageRecord]()

	if err := duckdb.Register(reg); err != nil {
		return nil, err
	}
	if err := defaults.Register(reg, delegates[defaults.Name], opts.Catalog, opts.Database); err != nil {
		return nil, err
	}
	if err := validate.Register(reg, delegates[validate.Name]); err != nil {
		return nil, err
	}

	for _, name := range slices.Sorted(maps.Keys(opts.Scripts)) {
		s := opts.Scripts[name]
		if s.Path == "" {
			return nil, fmt.Errorf("script analyzer %q: path not specified", name)
		}
		if err := script.Register(reg, name, s.Path, s.Delegate); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// NewLoader builds the registry and a loader over it.
func NewLoader(opts Options, loaderOpts ...analyzer.Option) (*Loader, error) {
	reg, err := NewRegistry(opts)
	if err != nil {
		return nil, err
	}
	return analyzer.NewLoader(reg, loaderOpts...), nil
}
