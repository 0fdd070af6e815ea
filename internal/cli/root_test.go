package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	assert.Equal(t, "lineage", cmd.Use)

	for _, name := range []string{"analyze", "analyzers", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	for _, flag := range []string{"config", "analyzer", "catalog", "database", "concurrency", "drop-invalid", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_AnalyzeWithConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("lineage.yaml", []byte(`
catalog: warehouse
database: public
delegates:
  validate: duckdb
`), 0o600))

	cmd := NewRootCmd()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader("INSERT INTO sink SELECT id FROM orders"))
	cmd.SetArgs([]string{"analyze", "-o", "json"})

	require.NoError(t, cmd.Execute(), errOut.String())

	var records []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 1)
	// validate -> duckdb skips the defaults step, so qualifiers come from
	// the statement, which carries none.
	assert.Equal(t, "", records[0]["source_catalog"])
	assert.Equal(t, "orders", records[0]["source_table"])
}

func TestRootCmd_DefaultsFromFlags(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("INSERT INTO sink SELECT id FROM orders"))
	cmd.SetArgs([]string{"analyze", "-o", "json", "--catalog", "warehouse", "--database", "staging"})

	require.NoError(t, cmd.Execute())

	var records []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "warehouse", records[0]["source_catalog"])
	assert.Equal(t, "staging", records[0]["source_database"])
	assert.Equal(t, "staging", records[0]["target_database"])
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\n"), 0o600))

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "analyzers"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}
