// Package sqlite provides a SQLite-based implementation of the run store
// and of a local search index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. Both stores share a single database connection:
//
//   - RunStore: ingestion run reports, kept as JSON next to a few indexed columns
//   - SearchIndex: image documents with their embeddings, searched by exact cosine k-NN
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.imgsearch/data/imgsearch.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
