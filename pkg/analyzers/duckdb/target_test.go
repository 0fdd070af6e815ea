package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWrite(t *testing.T) {
	tests := []struct {
		name      string
		sql       string
		wantOK    bool
		wantParts []string
		wantCols  []string
		wantQuery string
	}{
		{
			name:      "insert into",
			sql:       "INSERT INTO sink SELECT a FROM src",
			wantOK:    true,
			wantParts: []string{"sink"},
			wantQuery: "SELECT a FROM src",
		},
		{
			name:      "qualified target with column list",
			sql:       "insert into cat.db.sink (x, \"y\") select a, b from src",
			wantOK:    true,
			wantParts: []string{"cat", "db", "sink"},
			wantCols:  []string{"x", "y"},
			wantQuery: "select a, b from src",
		},
		{
			name:      "parenthesized query is not a column list",
			sql:       "INSERT INTO db.sink (SELECT a FROM src)",
			wantOK:    true,
			wantParts: []string{"db", "sink"},
			wantQuery: "(SELECT a FROM src)",
		},
		{
			name:      "insert overwrite table",
			sql:       "INSERT OVERWRITE TABLE sink SELECT a FROM src",
			wantOK:    true,
			wantParts: []string{"sink"},
			wantQuery: "SELECT a FROM src",
		},
		{
			name:      "quoted identifier with space",
			sql:       `INSERT INTO "my db"."my sink" SELECT a FROM src`,
			wantOK:    true,
			wantParts: []string{"my db", "my sink"},
			wantQuery: "SELECT a FROM src",
		},
		{
			name:      "create table as",
			sql:       "CREATE OR REPLACE TABLE db.t AS SELECT a FROM src",
			wantOK:    true,
			wantParts: []string{"db", "t"},
			wantQuery: "SELECT a FROM src",
		},
		{
			name:      "create view with columns",
			sql:       "create view if not exists v (x) as select a from src",
			wantOK:    true,
			wantParts: []string{"v"},
			wantCols:  []string{"x"},
			wantQuery: "select a from src",
		},
		{
			name:   "bare select",
			sql:    "SELECT a FROM src",
			wantOK: false,
		},
		{
			name:   "create table without query",
			sql:    "CREATE TABLE t (a INTEGER)",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := splitWrite(tt.sql)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantParts, got.Parts)
			assert.Equal(t, tt.wantCols, got.Columns)
			assert.Equal(t, tt.wantQuery, got.Query)
		})
	}
}

func TestSplitQualified(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitQualified("a.b.c"))
	assert.Equal(t, []string{"t"}, splitQualified("t"))
	assert.Equal(t, []string{"x y", "t"}, splitQualified(`"x y".t`))
	assert.Nil(t, splitQualified("a.b.c.d"), "more than three parts is not a table name")
	assert.Nil(t, splitQualified("a b"), "trailing text is rejected")
	assert.Nil(t, splitQualified(""))
}

func TestQualify(t *testing.T) {
	c, d, tbl := qualify([]string{"t"}, "cat", "db")
	assert.Equal(t, []string{"cat", "db", "t"}, []string{c, d, tbl})

	c, d, tbl = qualify([]string{"other", "t"}, "cat", "db")
	assert.Equal(t, []string{"cat", "other", "t"}, []string{c, d, tbl})

	c, d, tbl = qualify([]string{"c2", "d2", "t"}, "cat", "db")
	assert.Equal(t, []string{"c2", "d2", "t"}, []string{c, d, tbl})
}
