// Package config provides configuration management for the lineage CLI.
package config

// Config holds all CLI configuration options.
type Config struct {
	// Analyzer is the registry name used by analyze.
	Analyzer string `koanf:"analyzer"`

	// Catalog and Database qualify unqualified table names.
	Catalog  string `koanf:"catalog"`
	Database string `koanf:"database"`

	// Delegates overrides the delegate of a chain analyzer,
	// e.g. validate: duckdb skips the defaults step.
	Delegates map[string]string `koanf:"delegates"`

	// Scripts registers Starlark analyzers by name.
	Scripts map[string]ScriptConfig `koanf:"scripts"`

	Concurrency  int    `koanf:"concurrency"`
	DropInvalid  bool   `koanf:"drop_invalid"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	// ConfigFile is the file the configuration was read from, if any.
	ConfigFile string `koanf:"-"`
}

// ScriptConfig describes a Starlark analyzer.
type ScriptConfig struct {
	Path     string `koanf:"path"`
	Delegate string `koanf:"delegate"`
}

// Default configuration values.
const (
	DefaultAnalyzer    = "validate"
	DefaultCatalog     = "default_catalog"
	DefaultDatabase    = "default_database"
	DefaultConcurrency = 4
	DefaultOutput      = "auto" // Auto-detect: TTY=table, non-TTY=json
)

// Config file names searched in the working directory, in order.
var configFileNames = []string{"lineage.yaml", "lineage.yml"}
