// Package ir holds the definition types produced by the mapper builder and
// stored in the catalog: compiled statements, result maps, caches, SQL
// fragments and parameter maps, plus the bound SQL handed to an execution
// layer.
//
// Definitions are keyed by QualifiedID. Each definition can describe itself
// as a canonical object (RFC 8785 JSON) whose domain-separated SHA-256 is its
// fingerprint; two declarations of the same id are identical exactly when
// their fingerprints match.
//
// ir imports only markup and types from this module. The builder, catalog
// and renderer build on it.
package ir
