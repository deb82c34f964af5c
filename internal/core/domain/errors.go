package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoImages indicates the enumerator matched no files.
	ErrNoImages = errors.New("no images found")

	// ErrNoExif indicates an image carries no readable EXIF block.
	ErrNoExif = errors.New("no exif data")

	// Model Errors.

	// ErrModelUnavailable indicates the embedding model server could not be reached.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrUnsupportedModel indicates the model identifier is unknown to the server.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrDimensionMismatch indicates an embedding whose length differs from the run's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Index Errors.

	// ErrIndexExists indicates the target index has already been created.
	ErrIndexExists = errors.New("index already exists")

	// ErrSchemaInvalid indicates the index schema resource lacks settings or mappings.
	ErrSchemaInvalid = errors.New("invalid index schema")

	// ErrBackendUnavailable indicates the configured search backend is not usable.
	ErrBackendUnavailable = errors.New("search backend unavailable")
)

// StageError reports which ingestion stage failed.
// Chunk is the 1-based chunk number for bulk failures and 0 otherwise.
type StageError struct {
	Stage  IngestState
	Chunk  int
	Chunks int
	Err    error
}

func (e *StageError) Error() string {
	if e.Chunk > 0 {
		return fmt.Sprintf("%s: chunk %d of %d: %v", e.Stage, e.Chunk, e.Chunks, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
