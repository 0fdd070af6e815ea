package commands

import (
	"github.com/spf13/cobra"
)

// NewAnalyzersCommand creates the analyzers command.
func NewAnalyzersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyzers",
		Short: "List the registered analyzers",
		Long: `List every analyzer name the loader can resolve: the built-in
duckdb, defaults and validate analyzers plus the scripts configured in
lineage.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			return cmdCtx.Renderer.List(cmdCtx.Loader.Names())
		},
	}
}
