package core

// Statement is the unit of work handed to a lineage analyzer.
type Statement struct {
	TaskID TaskID
	SQLID  SQLID

	// SQL is the raw statement text.
	SQL string

	// Catalog and Database qualify table names that omit them.
	Catalog  string
	Database string

	// Target names the target table when SQL is a bare query
	// rather than an INSERT. May be qualified.
	Target string
}
