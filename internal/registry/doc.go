// Package registry provides the plugin record model shared by every stage of
// the mirror pipeline, and the merge step that folds records from several
// feeds into one deduplicated catalog.
//
// # Records
//
// A Record is one upstream catalog entry held as its raw JSON object. The
// pipeline never rewrites upstream entries: fields are read on demand with
// gjson and the original bytes are emitted when the catalog is serialized.
// Only three fields are ever inspected:
//
//   - package.name: preferred identity key
//   - shortname: fallback identity key
//   - updatedAt: last update time, used to pick a winner between duplicates
//
// # Identity
//
// The identity key is package.name when it is a non-empty string, otherwise
// shortname under the same rule. A record with neither is unidentifiable and
// is dropped by the merger without being treated as an error.
//
// # Merging
//
// Merge keeps one record per identity key:
//
//	merged := registry.Merge(records)
//
// For a key seen more than once, the record with the strictly later updatedAt
// wins. A missing or unparseable timestamp counts as the Unix epoch and ties
// keep the record seen first. The output lists keys in order of first
// appearance; a replacement does not move a key.
//
// # Test Utilities
//
// NewTestRecord builds records for tests with the options pattern:
//
//	rec := registry.NewTestRecord(
//	    registry.WithPackageName("koishi-plugin-foo"),
//	    registry.WithUpdatedAt("2024-02-01T00:00:00Z"),
//	)
package registry
