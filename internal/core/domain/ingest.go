package domain

import "time"

// IngestState is a step of the ingestion state machine.
type IngestState string

// Ingestion states, in pipeline order. Any failure ends in StateFailed.
const (
	StateIdle            IngestState = "IDLE"
	StateModelLoaded     IngestState = "MODEL_LOADED"
	StateFilesEnumerated IngestState = "FILES_ENUMERATED"
	StateDocsBuilt       IngestState = "DOCS_BUILT"
	StateIndexCreated    IngestState = "INDEX_CREATED"
	StateBulkLoading     IngestState = "BULK_LOADING"
	StateFlushed         IngestState = "FLUSHED"
	StateDone            IngestState = "DONE"
	StateFailed          IngestState = "FAILED"
)

// IsTerminal returns true for states a run cannot leave.
func (s IngestState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// String returns the string representation.
func (s IngestState) String() string {
	return string(s)
}

// next lists the legal forward transitions.
var next = map[IngestState]IngestState{
	StateIdle:            StateModelLoaded,
	StateModelLoaded:     StateFilesEnumerated,
	StateFilesEnumerated: StateDocsBuilt,
	StateDocsBuilt:       StateIndexCreated,
	StateIndexCreated:    StateBulkLoading,
	StateBulkLoading:     StateFlushed,
	StateFlushed:         StateDone,
}

// CanTransition reports whether moving from s to to is legal.
// Every non-terminal state may move to StateFailed.
func (s IngestState) CanTransition(to IngestState) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return next[s] == to
}

// ImageFailure records an image that could not be turned into a document.
type ImageFailure struct {
	Path  string
	Error string
}

// ChunkResult is the outcome of one bulk request.
type ChunkResult struct {
	// Number is the 1-based chunk position.
	Number int

	// Documents is the number of documents sent in the chunk.
	Documents int

	// ItemErrors counts documents the engine rejected inside an accepted request.
	ItemErrors int

	// Took is the wall time of the request.
	Took time.Duration

	// EngineTook is the processing time the engine reported.
	EngineTook time.Duration

	// Error is set when the request itself failed.
	Error string
}

// OK reports whether the request succeeded and no item was rejected.
func (c ChunkResult) OK() bool {
	return c.Error == "" && c.ItemErrors == 0
}

// IngestReport is the outcome of an ingestion run.
// It is filled in stage by stage so a failed run still reports what happened.
type IngestReport struct {
	RunID     string
	IndexName string
	Model     string
	State     IngestState
	StartedAt time.Time

	ModelLoadDuration time.Duration
	EmbedDuration     time.Duration
	TotalDuration     time.Duration

	ImagesFound     int
	ImagesProcessed int
	ExifMissing     int
	Failures        []ImageFailure

	// ExifErrors lists images indexed with incomplete EXIF and why.
	ExifErrors []ImageFailure

	Chunks []ChunkResult

	// Error is the message of the error that ended the run, if any.
	Error string
}

// Advance moves the report to state when the transition is legal.
// It returns false and leaves the state untouched otherwise.
func (r *IngestReport) Advance(state IngestState) bool {
	if !r.State.CanTransition(state) {
		return false
	}
	r.State = state
	return true
}

// DocumentsLoaded sums documents sent in successful chunks, minus rejected items.
func (r *IngestReport) DocumentsLoaded() int {
	n := 0
	for _, c := range r.Chunks {
		if c.Error == "" {
			n += c.Documents - c.ItemErrors
		}
	}
	return n
}

// EngineTook sums the engine-reported time of all chunks.
func (r *IngestReport) EngineTook() time.Duration {
	var d time.Duration
	for _, c := range r.Chunks {
		d += c.EngineTook
	}
	return d
}

// FailedPaths returns the set of images that did not become documents.
func (r *IngestReport) FailedPaths() map[string]bool {
	out := make(map[string]bool, len(r.Failures))
	for _, f := range r.Failures {
		out[f.Path] = true
	}
	return out
}

// FailedChunks returns the chunks that did not fully succeed.
func (r *IngestReport) FailedChunks() []ChunkResult {
	var failed []ChunkResult
	for _, c := range r.Chunks {
		if !c.OK() {
			failed = append(failed, c)
		}
	}
	return failed
}
