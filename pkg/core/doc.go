// Package core defines the shared language of the lineage system.
//
// This package contains:
//   - The lineage record entity (LineageRecord) and its qualified-name builders
//   - Identifier value types (TaskID, SQLID)
//   - The analyzer input (Statement)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
