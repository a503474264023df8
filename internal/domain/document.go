package domain

import (
	"path/filepath"
	"strings"
)

// SourceDocument is an inbound PDF identified by its file stem.
type SourceDocument struct {
	Name string
	Stem string
	Path string
}

// NewSourceDocument describes the PDF at path.
func NewSourceDocument(path string) SourceDocument {
	name := filepath.Base(path)
	return SourceDocument{
		Name: name,
		Stem: strings.TrimSuffix(name, filepath.Ext(name)),
		Path: path,
	}
}

// Document is a body of text handed to a Chunker.
type Document struct {
	ID      string
	Content string
}

// Chunk is one span of a chunked document. Index is the position in the
// sequence and ChunkID is derived from it.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}

// EnrichedContent is the validated language-model output for one document.
type EnrichedContent struct {
	CleanedText string
	Summary     string
	Entities    []string
}

// ProcessedRecord is the durable output of a successful pipeline run.
type ProcessedRecord struct {
	SourceFilename     string   `json:"source_filename"`
	DocumentSummary    string   `json:"document_summary"`
	KeyEntities        []string `json:"key_entities"`
	Chunks             []string `json:"chunks"`
	ProcessedTimestamp float64  `json:"processed_timestamp"`
}

// State is the position of a document in the pipeline state machine.
type State string

const (
	StatePending     State = "pending"
	StateConverted   State = "converted"
	StateNormalized  State = "normalized"
	StateEnriched    State = "enriched"
	StateChunked     State = "chunked"
	StatePersisted   State = "persisted"
	StateCleaned     State = "cleaned"
	StateQuarantined State = "quarantined"
	StateSkipped     State = "skipped"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateCleaned || s == StateQuarantined || s == StateSkipped
}
