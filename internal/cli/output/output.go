// Package output renders lineage records for the CLI.
//
// The auto mode picks a table on a terminal and JSON otherwise, so piped
// output stays machine readable.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/lineage/pkg/core"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto  Mode = "auto"
	ModeTable Mode = "table"
	ModeJSON  Mode = "json"
	ModeYAML  Mode = "yaml"
)

// Renderer writes records and diagnostics.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	isTTY  bool
	mode   Mode
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: file descriptors fit in int
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{out: out, errOut: errOut, isTTY: isTTY, mode: mode}
}

// EffectiveMode resolves ModeAuto against the terminal state.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeTable
	}
	return ModeJSON
}

// Records writes records in the effective mode.
func (r *Renderer) Records(records []core.LineageRecord) error {
	if records == nil {
		records = []core.LineageRecord{}
	}
	switch mode := r.EffectiveMode(); mode {
	case ModeTable:
		return r.recordsTable(records)
	case ModeJSON:
		return r.JSON(records)
	case ModeYAML:
		return r.YAML(records)
	default:
		return fmt.Errorf("unknown output mode %q", mode)
	}
}

func (r *Renderer) recordsTable(records []core.LineageRecord) error {
	if len(records) == 0 {
		_, _ = fmt.Fprintln(r.out, "(0 records)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"SQL ID", "Source", "Target", "Transform", "Valid"})
	for i := range records {
		rec := &records[i]
		t.AppendRow(table.Row{
			rec.SQLID,
			rec.BuildSourceColumnName(),
			rec.BuildTargetColumnName(),
			rec.Transform,
			rec.Valid(),
		})
	}
	t.Render()
	return nil
}

// List writes one name per line, or a JSON/YAML array.
func (r *Renderer) List(names []string) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(names)
	case ModeYAML:
		return r.YAML(names)
	default:
		for _, n := range names {
			_, _ = fmt.Fprintln(r.out, n)
		}
		return nil
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as a YAML document.
func (r *Renderer) YAML(v any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Warnf writes a diagnostic line to the error stream.
func (r *Renderer) Warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errOut, "warning: "+format+"\n", args...)
}
