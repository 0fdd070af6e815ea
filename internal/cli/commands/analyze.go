package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/leapstack-labs/lineage/internal/batch"
	"github.com/leapstack-labs/lineage/pkg/core"
	"github.com/spf13/cobra"
)

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	TaskID string // Task id shared by every statement (default: random UUID)
	Target string // Target table for statements that are a bare SELECT
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Extract column-level lineage from SQL",
		Long: `Analyze SQL statements and print one record per source column to
target column edge.

Statements are read from the given files, or from stdin when no file (or
"-") is given, and split on semicolons. Each statement is analyzed by its
own analyzer instance; a statement that fails is reported on stderr and
does not stop the others.

Output adapts to environment:
  - Terminal: table
  - Piped/Scripted: JSON`,
		Example: `  # Analyze a file with the default analyzer chain
  lineage analyze etl.sql

  # Read from stdin, emit YAML
  echo "INSERT INTO t SELECT a FROM s" | lineage analyze -o yaml

  # Analyze a bare SELECT into a known target
  lineage analyze --target sales.summary report.sql

  # Use the raw DuckDB analyzer and drop untrusted records
  lineage analyze --analyzer duckdb --drop-invalid etl.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.TaskID, "task-id", "", "Task id for the emitted records (default: random UUID)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "Target table for statements without INSERT/CREATE")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg

	taskID := opts.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	stmts, err := readStatements(cmd.InOrStdin(), args, core.TaskID(taskID))
	if err != nil {
		return err
	}
	for i := range stmts {
		stmts[i].Target = opts.Target
	}

	cmdCtx.Logger.Debug("analyzing statements",
		"analyzer", cfg.Analyzer,
		"statements", len(stmts),
		"task_id", taskID)

	results := batch.Run(cmd.Context(), cmdCtx.Loader, cfg.Analyzer, stmts, batch.Options{
		Concurrency: cfg.Concurrency,
		Logger:      cmdCtx.Logger,
	})

	failed := batch.Failed(results)
	for _, r := range failed {
		cmdCtx.Renderer.Warnf("%s: %v", r.Statement.SQLID, r.Err)
	}

	records := batch.Records(results)
	if cfg.DropInvalid {
		records = core.FilterValid(records)
	}
	if err := cmdCtx.Renderer.Records(records); err != nil {
		return err
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d statements failed", len(failed), len(results))
	}
	return nil
}

// readStatements reads and splits every input. Statement ids are
// <source>:<n>, numbered from 1 within each source. The source is the path
// as given, or "stdin"; an input named twice gets a #<k> suffix.
func readStatements(stdin io.Reader, args []string, taskID core.TaskID) ([]core.Statement, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}

	var stmts []core.Statement
	seen := make(map[string]int, len(args))
	for _, arg := range args {
		var (
			content []byte
			source  string
			err     error
		)
		if arg == "-" {
			source = "stdin"
			content, err = io.ReadAll(stdin)
		} else {
			source = arg
			content, err = os.ReadFile(arg) //nolint:gosec // G304: path is a command argument
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		if n := seen[source]; n > 0 {
			seen[source]++
			source = fmt.Sprintf("%s#%d", source, n+1)
		} else {
			seen[source] = 1
		}

		for i, sql := range splitStatements(string(content)) {
			stmts = append(stmts, core.Statement{
				TaskID: taskID,
				SQLID:  core.SQLID(fmt.Sprintf("%s:%d", source, i+1)),
				SQL:    sql,
			})
		}
	}

	if len(stmts) == 0 {
		return nil, fmt.Errorf("no SQL statements found")
	}
	return stmts, nil
}
