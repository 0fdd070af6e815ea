package commands

import (
	"log/slog"

	"github.com/leapstack-labs/lineage/internal/builtin"
	"github.com/leapstack-labs/lineage/internal/cli/config"
	"github.com/leapstack-labs/lineage/internal/cli/output"
	"github.com/leapstack-labs/lineage/pkg/analyzer"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Loader   *builtin.Loader
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a loader over the
// configured analyzers and a renderer for the configured output mode.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	loader, err := builtin.NewLoader(builtinOptions(cfg), analyzer.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Loader:   loader,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}, nil
}

func builtinOptions(cfg *config.Config) builtin.Options {
	scripts := make(map[string]builtin.Script, len(cfg.Scripts))
	for name, s := range cfg.Scripts {
		scripts[name] = builtin.Script{Path: s.Path, Delegate: s.Delegate}
	}
	return builtin.Options{
		Delegates: cfg.Delegates,
		Catalog:   cfg.Catalog,
		Database:  cfg.Database,
		Scripts:   scripts,
	}
}
