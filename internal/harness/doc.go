// Package harness runs declarative scenarios against a throwaway database.
//
// A scenario names a directory of CUE structure declarations, a batch of
// documents to insert into one structure, and a list of queries with their
// expected ids and counts. Run reports every mismatch instead of stopping at
// the first one. RunWithGolden additionally snapshots the SQL generated for
// each query, so changes to the SQL generator show up as golden file diffs:
//
//	go test ./internal/harness -update
//
// Scenarios are YAML:
//
//	name: long-books
//	description: books over 300 pages, longest first
//	specs: ../specs
//	structure: Book
//	documents:
//	  - {Title: Dune, Pages: 412}
//	queries:
//	  - name: long
//	    where: Pages > 300
//	    order_by: Pages
//	    descending: true
//	    expect_ids: [1]
//	    expect_count: 1
//	assertions:
//	  - type: table_rows
//	    table: BookIntegers
//	    count: 1
package harness
