// Package domain defines the core business entities for imgsearch.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ImageDocument: An image with its embedding and EXIF metadata
//   - Exif: Best-effort capture date and GPS location
//   - Settings: The explicit configuration passed to every component
//   - IngestReport: Per-stage and per-chunk outcome of an ingestion run
//   - Hit: A nearest-neighbour match returned by a k-NN query
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
