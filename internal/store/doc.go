// Package store is the SQLite execution sink for structure sets.
//
// A structure set is the group of tables owned by one document type: the
// structures table holding payloads, the uniques table and one index table
// per data type category. DDL for a set comes from dialect templates.
//
// Two drivers are supported and chosen by name:
//   - "sqlite3": github.com/mattn/go-sqlite3 (cgo)
//   - "sqlite": modernc.org/sqlite (pure Go)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Statements use named parameters (@id, @p0, ...) bound with sql.Named.
package store
