// Package store persists compiled catalogs as SQLite snapshots.
//
// A snapshot records every namespace of a sealed catalog with its cache,
// result maps and statements. Snapshot ids are content hashes computed via
// internal/ir/hash.go, so writing an unchanged catalog again is a no-op and
// two snapshots with equal ids hold equal definitions.
//
// # Ordering
//
// Snapshots are ordered by seq, a counter assigned on insert, never by
// wall time. Listings order rows by namespace and id with COLLATE BINARY
// so output is identical across runs.
//
// # History
//
// A statement keeps its fingerprint while its definition is unchanged, so
// StatementHistory can tell which snapshots changed a statement without
// comparing definitions.
package store
