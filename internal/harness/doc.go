// Package harness runs mapper scenarios: YAML files that load a set of
// mapper documents and render their statements with parameter objects.
//
// # Scenario Format
//
//	name: author_statements
//	description: "What this scenario validates"
//	settings:
//	  database_id: sqlite
//	  placeholder: question
//	mappers:
//	  - path: mappers/author.xml
//	  - resource: inline.xml
//	    content: |
//	      <mapper namespace="inline">...</mapper>
//	cases:
//	  - name: find by id
//	    statement: author.findById
//	    params: { id: 7 }
//	    expect:
//	      sql: "select * from author where id = ?"
//	      bindings: [7]
//	  - name: missing parameter
//	    statement: author.search
//	    error: "orderBy"
//	assertions:
//	  - type: statement_exists
//	    statement: author.findById
//	  - type: snapshot_statements
//	    namespace: author
//	    count: 4
//
// # Assertion Types
//
//   - statement_exists: the statement is in the catalog
//   - result_map_properties: a result map maps exactly the listed properties
//   - unresolved_count: the final pass left exactly N definitions unresolved
//   - snapshot_statements: a stored snapshot holds N statements of a namespace
//
// # Deterministic Output
//
// Scenarios load with the testutil type registry and a fixed load id
// (scenario load_id, or "test-load-default"). Rendered SQL is compared with
// runs of whitespace collapsed, and binding values are normalized before
// canonical JSON encoding, so golden files are byte-stable.
package harness
