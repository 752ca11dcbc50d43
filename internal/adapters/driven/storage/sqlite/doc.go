// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple interfaces
// through a single database connection:
//
//   - MessageStore: Message and chunk persistence
//   - PrecedentGraph: Decisions plus node/edge tables of the precedent graph
//   - VectorIndex: Float32 blobs with metadata columns, exact cosine kNN
//   - KeywordIndex: Inverted index of term postings with BM25 scoring
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.precedent/data/precedent.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Multi-row writes run in a transaction so readers never
// observe a half-written decision or document.
package sqlite
