// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ModelLoader / ImageEmbedder: Load the embedding model and encode images
//   - FileEnumerator: Lists candidate images under a root
//   - MetadataReader: Reads EXIF date and GPS location
//   - SearchIndex: Creates the index, bulk loads, flushes, answers k-NN queries
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunStore: Ingestion run history. Without it, runs are not recorded.
//   - BulkSink: Receives a copy of every bulk payload (--dump).
//   - FileWatcher: Streams newly created images (watch command).
//   - ImageViewer: Displays query results.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
