package core

import "strings"

// Delimiter joins the parts of a qualified name.
// Parts are not escaped, so no part may contain it.
const Delimiter = "."

// TaskID identifies the task a statement belongs to.
type TaskID string

// SQLID identifies a single statement within a task.
type SQLID string

// LineageRecord is one source-column to target-column edge produced by
// analyzing a single statement.
//
// The zero value of Invalid is false, so a freshly built record is valid.
// Records are plain values: they hold no references and need no locking.
type LineageRecord struct {
	TaskID TaskID `json:"task_id" yaml:"task_id"`
	SQLID  SQLID  `json:"sql_id" yaml:"sql_id"`

	SourceCatalog  string `json:"source_catalog" yaml:"source_catalog"`
	SourceDatabase string `json:"source_database" yaml:"source_database"`
	SourceTable    string `json:"source_table" yaml:"source_table"`
	SourceColumn   string `json:"source_column" yaml:"source_column"`

	TargetCatalog  string `json:"target_catalog" yaml:"target_catalog"`
	TargetDatabase string `json:"target_database" yaml:"target_database"`
	TargetTable    string `json:"target_table" yaml:"target_table"`
	TargetColumn   string `json:"target_column" yaml:"target_column"`

	// Transform describes how the target derives from the source.
	// Empty means a direct copy.
	Transform string `json:"transform" yaml:"transform"`

	// Invalid marks a record that analysis could not trust, e.g. an
	// ambiguous column reference. Consumers should skip such records.
	Invalid bool `json:"invalid" yaml:"invalid"`
}

// BuildSourceTableName returns catalog.database.table for the source side.
// Missing parts produce empty segments; it never fails.
func (r *LineageRecord) BuildSourceTableName() string {
	return strings.Join([]string{r.SourceCatalog, r.SourceDatabase, r.SourceTable}, Delimiter)
}

// BuildTargetTableName returns catalog.database.table for the target side.
func (r *LineageRecord) BuildTargetTableName() string {
	return strings.Join([]string{r.TargetCatalog, r.TargetDatabase, r.TargetTable}, Delimiter)
}

// BuildSourceColumnName returns the source table name followed by the source column.
func (r *LineageRecord) BuildSourceColumnName() string {
	return r.BuildSourceTableName() + Delimiter + r.SourceColumn
}

// BuildTargetColumnName returns the target table name followed by the target column.
func (r *LineageRecord) BuildTargetColumnName() string {
	return r.BuildTargetTableName() + Delimiter + r.TargetColumn
}

// RecordKey is the composite identity of a record: task, statement, source
// column and target column. Keys compare field by field, so names that
// contain the delimiter never collide.
type RecordKey struct {
	TaskID         TaskID
	SQLID          SQLID
	SourceCatalog  string
	SourceDatabase string
	SourceTable    string
	SourceColumn   string
	TargetCatalog  string
	TargetDatabase string
	TargetTable    string
	TargetColumn   string
}

// String joins the key for display. Distinct keys may render the same.
func (k RecordKey) String() string {
	src := LineageRecord{SourceCatalog: k.SourceCatalog, SourceDatabase: k.SourceDatabase, SourceTable: k.SourceTable, SourceColumn: k.SourceColumn}
	dst := LineageRecord{TargetCatalog: k.TargetCatalog, TargetDatabase: k.TargetDatabase, TargetTable: k.TargetTable, TargetColumn: k.TargetColumn}
	return strings.Join([]string{
		string(k.TaskID),
		string(k.SQLID),
		src.BuildSourceColumnName(),
		dst.BuildTargetColumnName(),
	}, "/")
}

// Key returns the identity of the record.
// Uniqueness across records is not enforced here.
func (r *LineageRecord) Key() RecordKey {
	return RecordKey{
		TaskID:         r.TaskID,
		SQLID:          r.SQLID,
		SourceCatalog:  r.SourceCatalog,
		SourceDatabase: r.SourceDatabase,
		SourceTable:    r.SourceTable,
		SourceColumn:   r.SourceColumn,
		TargetCatalog:  r.TargetCatalog,
		TargetDatabase: r.TargetDatabase,
		TargetTable:    r.TargetTable,
		TargetColumn:   r.TargetColumn,
	}
}

// Valid reports whether the record may be consumed downstream.
func (r *LineageRecord) Valid() bool {
	return !r.Invalid
}

// MarkInvalid flags the record as untrusted. This is the only mutation
// allowed after a record has been handed off.
func (r *LineageRecord) MarkInvalid() {
	r.Invalid = true
}

// FilterValid returns the records that are not marked invalid.
// The input slice is not modified.
func FilterValid(records []LineageRecord) []LineageRecord {
	out := make([]LineageRecord, 0, len(records))
	for _, rec := range records {
		if rec.Valid() {
			out = append(out, rec)
		}
	}
	return out
}
